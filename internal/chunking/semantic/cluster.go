package semantic

import (
	"fmt"
	"math"
	"sort"

	"github.com/custodia-labs/domainrag/internal/core/domain"
)

// Linkage selects how the distance between two clusters is measured.
type Linkage string

const (
	// LinkageWard merges the pair that least increases within-cluster variance.
	LinkageWard Linkage = "ward"
	// LinkageAverage uses the mean pairwise distance.
	LinkageAverage Linkage = "average"
	// LinkageComplete uses the largest pairwise distance.
	LinkageComplete Linkage = "complete"
	// LinkageSingle uses the smallest pairwise distance.
	LinkageSingle Linkage = "single"
)

// Cluster runs agglomerative clustering over Euclidean distance and stops
// once the closest pair of clusters is at least threshold apart.
//
// The result lists each cluster's point indices in ascending order, and the
// clusters are ordered by their first point.
func Cluster(points [][]float32, threshold float64, linkage Linkage) ([][]int, error) {
	n := len(points)
	if n == 0 {
		return nil, nil
	}
	switch linkage {
	case LinkageWard, LinkageAverage, LinkageComplete, LinkageSingle:
	case "":
		linkage = LinkageWard
	default:
		return nil, fmt.Errorf("linkage %q: %w", linkage, domain.ErrInvalidConfig)
	}
	dim := len(points[0])
	for i, p := range points {
		if len(p) != dim {
			return nil, fmt.Errorf("point %d has dimension %d, want %d: %w", i, len(p), dim, domain.ErrDimensionMismatch)
		}
	}

	// Ward works on squared distances so the Lance-Williams update is exact;
	// heights are reported as their square root.
	ward := linkage == LinkageWard
	height := func(d float64) float64 {
		if ward {
			return math.Sqrt(d)
		}
		return d
	}

	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := sqDist(points[i], points[j])
			if !ward {
				d = math.Sqrt(d)
			}
			dist[i][j], dist[j][i] = d, d
		}
	}

	members := make([][]int, n)
	active := make([]bool, n)
	for i := range members {
		members[i] = []int{i}
		active[i] = true
	}

	// nn[i] is the closest active cluster to i.
	nn := make([]int, n)
	nnDist := make([]float64, n)
	refresh := func(i int) {
		nn[i], nnDist[i] = -1, math.Inf(1)
		for j := 0; j < n; j++ {
			if j != i && active[j] && dist[i][j] < nnDist[i] {
				nn[i], nnDist[i] = j, dist[i][j]
			}
		}
	}
	for i := 0; i < n; i++ {
		refresh(i)
	}

	for remaining := n; remaining > 1; remaining-- {
		a := -1
		for i := 0; i < n; i++ {
			if active[i] && nn[i] >= 0 && (a < 0 || nnDist[i] < nnDist[a]) {
				a = i
			}
		}
		if a < 0 || height(nnDist[a]) >= threshold {
			break
		}
		b := nn[a]
		if b < a {
			a, b = b, a
		}

		// Merge b into a.
		na, nb := float64(len(members[a])), float64(len(members[b]))
		dab := dist[a][b]
		for k := 0; k < n; k++ {
			if !active[k] || k == a || k == b {
				continue
			}
			nk := float64(len(members[k]))
			dak, dbk := dist[a][k], dist[b][k]
			var d float64
			switch linkage {
			case LinkageWard:
				d = ((na+nk)*dak + (nb+nk)*dbk - nk*dab) / (na + nb + nk)
			case LinkageAverage:
				d = (na*dak + nb*dbk) / (na + nb)
			case LinkageComplete:
				d = math.Max(dak, dbk)
			case LinkageSingle:
				d = math.Min(dak, dbk)
			}
			dist[a][k], dist[k][a] = d, d
		}
		members[a] = append(members[a], members[b]...)
		members[b] = nil
		active[b] = false

		for k := 0; k < n; k++ {
			if !active[k] {
				continue
			}
			switch {
			case k == a || nn[k] == a || nn[k] == b:
				refresh(k)
			case dist[k][a] < nnDist[k]:
				nn[k], nnDist[k] = a, dist[k][a]
			}
		}
	}

	var clusters [][]int
	for i := 0; i < n; i++ {
		if active[i] {
			m := members[i]
			sort.Ints(m)
			clusters = append(clusters, m)
		}
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i][0] < clusters[j][0] })
	return clusters, nil
}

func sqDist(a, b []float32) float64 {
	var s float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		s += d * d
	}
	return s
}
