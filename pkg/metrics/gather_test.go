package metrics

import (
	"fmt"

	dto "github.com/prometheus/client_model/go"
)

// findMetric returns the series of family name whose labels include want.
func findMetric(mfs []*dto.MetricFamily, name string, want map[string]string) *dto.Metric {
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if hasLabels(m.GetLabel(), want) {
				return m
			}
		}
	}
	return nil
}

func hasLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, p := range pairs {
		if v, ok := want[p.GetName()]; ok && v == p.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}

func fetchCounter(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	m := findMetric(mfs, name, labels)
	if m == nil {
		return 0, fmt.Errorf("no %s series with %v", name, labels)
	}
	return m.GetCounter().GetValue(), nil
}

// fetchCounterValue is fetchCounter for a single label.
func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	return fetchCounter(mfs, name, map[string]string{label: value})
}
