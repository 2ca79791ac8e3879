package tune

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestParseParam(t *testing.T) {
	tests := []struct {
		in      string
		name    string
		values  []float64
		wantErr bool
	}{
		{"gain=0.1,0.5", "gain", []float64{0.1, 0.5}, false},
		{"wx=0:1:3", "wx", []float64{0, 0.5, 1}, false},
		{"wx=2:4:1", "wx", []float64{2}, false},
		{"wx=0:1:0", "", nil, true},
		{"gain", "", nil, true},
		{"=1", "", nil, true},
		{"gain=a", "", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, err := ParseParam(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if p.Name != tt.name || len(p.Values) != len(tt.values) {
				t.Fatalf("got %+v", p)
			}
			for i, v := range tt.values {
				if math.Abs(p.Values[i]-v) > 1e-12 {
					t.Errorf("Values[%d] = %v, want %v", i, p.Values[i], v)
				}
			}
		})
	}
}

func TestGridSearch(t *testing.T) {
	g := NewGridSearch([]Param{
		{Name: "a", Values: []float64{-1, 0, 1, 2}},
		{Name: "b", Values: []float64{0, 3}},
	})
	if g.Size() != 8 {
		t.Fatalf("Size = %d, want 8", g.Size())
	}

	best, trials, err := g.Search(context.Background(), func(_ context.Context, p map[string]float64) (float64, error) {
		if p["a"] == 2 {
			return -100, errors.New("diverged")
		}
		if p["a"] == -1 {
			return math.NaN(), nil
		}
		return (p["a"]-1)*(p["a"]-1) + (p["b"]-3)*(p["b"]-3), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(trials) != 8 {
		t.Errorf("trials = %d, want 8", len(trials))
	}
	if best.Params["a"] != 1 || best.Params["b"] != 3 || best.Value != 0 {
		t.Errorf("best = %+v", best)
	}
	if got := Format(best.Params); got != "a=1 b=3" {
		t.Errorf("Format = %q", got)
	}
}

func TestGridSearchAllFail(t *testing.T) {
	g := NewGridSearch([]Param{{Name: "a", Values: []float64{1, 2}}})
	_, trials, err := g.Search(context.Background(), func(context.Context, map[string]float64) (float64, error) {
		return 0, errors.New("nope")
	})
	if err == nil || len(trials) != 2 {
		t.Errorf("err = %v, trials = %d", err, len(trials))
	}
}

func TestGridSearchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g := NewGridSearch([]Param{{Name: "a", Values: []float64{1, 2, 3}}})
	calls := 0
	_, _, err := g.Search(ctx, func(context.Context, map[string]float64) (float64, error) {
		calls++
		cancel()
		return 0, nil
	})
	if !errors.Is(err, context.Canceled) || calls != 1 {
		t.Errorf("err = %v, calls = %d", err, calls)
	}
}
