// Package forecast predicts next-day occupancy demand with a moving
// average over daily access counts.
package forecast

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/opensource-access/kestrel/internal/domain"
)

// DefaultWindow is the moving-average window in days.
const DefaultWindow = 4

// DailyCount is the number of accesses observed on one calendar day.
type DailyCount struct {
	Date      string  `json:"date"` // YYYY-MM-DD
	Count     int     `json:"count"`
	MovingAvg float64 `json:"movingAvg"`
}

// Validation measures the prediction against the last fully-observed day.
type Validation struct {
	Date      string  `json:"date"`
	Actual    int     `json:"actual"`
	Predicted float64 `json:"predicted"`
	MAE       float64 `json:"mae"`
	RMSE      float64 `json:"rmse"`
	Accuracy  float64 `json:"accuracy"` // in [0,1]
}

// Result is one forecast run.
type Result struct {
	Daily      []DailyCount `json:"daily"`
	Window     int          `json:"window"`
	NextDate   string       `json:"nextDate"`
	Predicted  float64      `json:"predicted"`
	Validation *Validation  `json:"validation,omitempty"`
}

// Forecast computes the daily series and the next-day prediction from the
// deduplicated event set. Pure function of its input.
func Forecast(events []domain.AccessEvent, window int) (*Result, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("no events to forecast from")
	}
	if window <= 0 {
		window = DefaultWindow
	}

	daily := dailyCounts(events)

	// Trailing moving average over the previous `window` days, zero until
	// enough days exist.
	for i := range daily {
		if i+1 >= window {
			sum := 0
			for j := i + 1 - window; j <= i; j++ {
				sum += daily[j].Count
			}
			daily[i].MovingAvg = float64(sum) / float64(window)
		}
	}

	result := &Result{
		Daily:  daily,
		Window: window,
	}

	// Prediction for the day after the last observed one: mean of the last
	// `window` observed days (or all of them when fewer exist).
	tail := window
	if tail > len(daily) {
		tail = len(daily)
	}
	sum := 0
	for _, d := range daily[len(daily)-tail:] {
		sum += d.Count
	}
	result.Predicted = float64(sum) / float64(tail)

	lastDate, _ := time.Parse("2006-01-02", daily[len(daily)-1].Date)
	result.NextDate = lastDate.AddDate(0, 0, 1).Format("2006-01-02")

	// Validate against the last real day when enough history precedes it.
	if len(daily) > window {
		last := len(daily) - 1
		vsum := 0
		for _, d := range daily[last-window : last] {
			vsum += d.Count
		}
		predicted := float64(vsum) / float64(window)
		actual := daily[last].Count

		mae := math.Abs(float64(actual) - predicted)
		rmse := math.Sqrt((float64(actual) - predicted) * (float64(actual) - predicted))

		accuracy := 0.0
		if actual != 0 {
			accuracy = 1 - mae/float64(actual)
			if accuracy < 0 {
				accuracy = 0
			}
		}

		result.Validation = &Validation{
			Date:      daily[last].Date,
			Actual:    actual,
			Predicted: predicted,
			MAE:       mae,
			RMSE:      rmse,
			Accuracy:  accuracy,
		}
	}

	return result, nil
}

// dailyCounts groups events by calendar day (UTC) in ascending date order.
func dailyCounts(events []domain.AccessEvent) []DailyCount {
	counts := make(map[string]int)
	for i := range events {
		day := events[i].Timestamp.Format("2006-01-02")
		counts[day]++
	}

	days := make([]string, 0, len(counts))
	for day := range counts {
		days = append(days, day)
	}
	sort.Strings(days)

	daily := make([]DailyCount, 0, len(days))
	for _, day := range days {
		daily = append(daily, DailyCount{Date: day, Count: counts[day]})
	}
	return daily
}
