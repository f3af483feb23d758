package provider

import "strings"

// ModelRow maps an abstract (orientation, duration) request to a concrete
// vendor model key. An empty Orientation or zero DurationSeconds matches any
// value.
type ModelRow struct {
	Orientation     string
	DurationSeconds int
	Model           string
}

// ModelTable is an ordered lookup table with an explicit default row.
type ModelTable struct {
	Rows    []ModelRow
	Default ModelRow
}

// Lookup returns the model of the first matching row, or the default.
// Durations match the smallest row duration that is >= the request; a request
// longer than every row gets the longest row of its orientation.
func (t ModelTable) Lookup(orientation string, durationSeconds int) string {
	o := strings.ToLower(strings.TrimSpace(orientation))
	best, longest := -1, -1
	for i, row := range t.Rows {
		if row.Orientation != "" && row.Orientation != o {
			continue
		}
		if row.DurationSeconds != 0 && durationSeconds > row.DurationSeconds {
			if longest == -1 || row.DurationSeconds > t.Rows[longest].DurationSeconds {
				longest = i
			}
			continue
		}
		if best == -1 || fits(row, t.Rows[best], durationSeconds) {
			best = i
		}
	}
	switch {
	case best != -1:
		return t.Rows[best].Model
	case longest != -1:
		return t.Rows[longest].Model
	}
	return t.Default.Model
}

// Contains reports whether model is a concrete key already present in the table.
func (t ModelTable) Contains(model string) bool {
	if model == t.Default.Model {
		return true
	}
	for _, row := range t.Rows {
		if row.Model == model {
			return true
		}
	}
	return false
}

// fits prefers the tighter duration bound among two candidate rows.
func fits(candidate, current ModelRow, durationSeconds int) bool {
	if durationSeconds == 0 {
		return false
	}
	if current.DurationSeconds == 0 {
		return candidate.DurationSeconds != 0
	}
	return candidate.DurationSeconds != 0 && candidate.DurationSeconds < current.DurationSeconds
}
