package dynamo

import "gonum.org/v1/gonum/mat"

// Eye returns the n×n identity matrix.
func Eye(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// VecOf copies a slice into a new gonum vector.
func VecOf(v []float64) *mat.VecDense {
	data := make([]float64, len(v))
	copy(data, v)
	return mat.NewVecDense(len(data), data)
}

// Slice copies a gonum vector into a new slice.
func Slice(v mat.Vector) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}

// VStack stacks matrices with equal column counts. Nil entries are skipped.
// It returns nil when every entry is nil or empty.
func VStack(blocks ...*mat.Dense) *mat.Dense {
	rows, cols := 0, -1
	for _, b := range blocks {
		if b == nil || b.IsEmpty() {
			continue
		}
		r, c := b.Dims()
		if cols >= 0 && c != cols {
			panic(mat.ErrShape)
		}
		rows += r
		cols = c
	}
	if rows == 0 {
		return nil
	}
	out := mat.NewDense(rows, cols, nil)
	i := 0
	for _, b := range blocks {
		if b == nil || b.IsEmpty() {
			continue
		}
		r, _ := b.Dims()
		out.Slice(i, i+r, 0, cols).(*mat.Dense).Copy(b)
		i += r
	}
	return out
}

// HStackVec concatenates vectors. Nil entries are skipped.
func HStackVec(parts ...*mat.VecDense) *mat.VecDense {
	n := 0
	for _, p := range parts {
		if p != nil && !p.IsEmpty() {
			n += p.Len()
		}
	}
	if n == 0 {
		return nil
	}
	out := make([]float64, 0, n)
	for _, p := range parts {
		if p == nil || p.IsEmpty() {
			continue
		}
		out = append(out, Slice(p)...)
	}
	return mat.NewVecDense(n, out)
}
