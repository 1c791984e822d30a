package surface

import "time"

// assignColumns lays out timed events that overlap in time side by side.
// events must be ordered by start. Events whose spans chain into one overlap
// cluster share the cluster's column count; an event takes the first column
// whose previous occupant has ended.
func assignColumns(events []RenderedEvent) {
	var (
		cluster    []int
		columnEnds []time.Time
		clusterEnd time.Time
	)
	flush := func() {
		for _, idx := range cluster {
			events[idx].Columns = len(columnEnds)
		}
		cluster = cluster[:0]
		columnEnds = columnEnds[:0]
	}

	for i := range events {
		event := &events[i]
		if event.AllDay {
			event.Column, event.Columns = 0, 1
			continue
		}
		if len(cluster) > 0 && !event.Start.Before(clusterEnd) {
			flush()
		}

		column := -1
		for c, end := range columnEnds {
			if !event.Start.Before(end) {
				column = c
				break
			}
		}
		if column < 0 {
			column = len(columnEnds)
			columnEnds = append(columnEnds, event.End)
		} else {
			columnEnds[column] = event.End
		}
		event.Column = column

		cluster = append(cluster, i)
		if len(cluster) == 1 || event.End.After(clusterEnd) {
			clusterEnd = event.End
		}
	}
	flush()
}
