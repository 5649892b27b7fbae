package domain

import "time"

// collisionSuffix is appended to a right-hand column whose name already
// exists on the left side of a join.
const collisionSuffix = "_ocean"

// InnerJoin joins the local and teleconnection series on exact timestamp
// equality. Only timestamps present on both sides survive, in local order.
// Duplicate timestamps are not collapsed: every matching pair produces a row.
// Series of different temporal resolution are not resampled, so only the
// intersecting timestamps remain.
//
// Only the named teleconnection columns are carried over; when none are
// named, all of them are.
func InnerJoin(local, tele ReducedSeries, teleColumns ...string) ReducedSeries {
	if len(teleColumns) == 0 {
		for name := range tele.Values {
			teleColumns = append(teleColumns, name)
		}
	}

	byTime := make(map[int64][]int, tele.Len())
	for j, ts := range tele.Times {
		byTime[ts.UnixNano()] = append(byTime[ts.UnixNano()], j)
	}

	type pair struct{ left, right int }
	var pairs []pair
	for i, ts := range local.Times {
		for _, j := range byTime[ts.UnixNano()] {
			pairs = append(pairs, pair{left: i, right: j})
		}
	}

	out := ReducedSeries{
		Times:  make([]time.Time, len(pairs)),
		Values: make(map[string][]float64, len(local.Values)+len(teleColumns)),
	}
	for k, p := range pairs {
		out.Times[k] = local.Times[p.left]
	}

	for name, col := range local.Values {
		values := make([]float64, len(pairs))
		for k, p := range pairs {
			values[k] = col[p.left]
		}
		out.Values[name] = values
	}

	for _, name := range teleColumns {
		col, ok := tele.Values[name]
		if !ok {
			continue
		}
		target := name
		if local.Has(name) {
			target = name + collisionSuffix
		}
		values := make([]float64, len(pairs))
		for k, p := range pairs {
			values[k] = col[p.right]
		}
		out.Values[target] = values
	}

	return out
}
