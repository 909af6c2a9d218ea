package modelwrap_test

import (
	"context"
	"fmt"

	"github.com/rushteam/modelwrap"
	"github.com/rushteam/modelwrap/feature"
	"github.com/rushteam/modelwrap/model"
)

func Example() {
	// 线性委托模型：-100 + 30*accommodates + 20*bedrooms + review_scores_sum
	signature := []string{"accommodates", "bedrooms", "review_scores_sum", "trunc_lat", "trunc_long"}
	delegate, _ := model.NewLinearRegressor(-100, signature, []float64{30, 20, 1, 0, 0})
	pre, _ := feature.NewPreprocessor(signature, feature.DefaultListingSteps())

	m, err := modelwrap.New(delegate, pre, nil)
	if err != nil {
		panic(err)
	}

	columns := append([]string{"accommodates", "bedrooms", "latitude", "longitude"}, feature.ReviewScoreColumns...)
	input, _ := modelwrap.NewFrame(columns, [][]float64{
		{2, 1, 37.769310, -122.433856, 10, 9, 10, 10, 9, 9},
		{6, 3, 37.801234, -122.410001, 10, 10, 10, 10, 10, 10},
	})
	out, err := m.Predict(context.Background(), nil, input)
	if err != nil {
		panic(err)
	}
	for _, label := range out.Labels {
		fmt.Println(label)
	}
	// Output:
	// Not Expensive
	// Expensive
}
