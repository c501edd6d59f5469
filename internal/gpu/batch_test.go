package gpu

import "testing"

func TestPlanBatches(t *testing.T) {
	tests := []struct {
		name  string
		total int
		size  int
		want  []batch
	}{
		{"empty", 0, 500, nil},
		{"negative", -3, 500, nil},
		{"badSize", 100, 0, nil},
		{"single", 100, 500, []batch{{0, 100}}},
		{"exact", 1000, 500, []batch{{0, 500}, {500, 500}}},
		{"remainder", 1200, 500, []batch{{0, 500}, {500, 500}, {1000, 200}}},
		{"one", 1, 1, []batch{{0, 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := planBatches(tt.total, tt.size)
			if len(got) != len(tt.want) {
				t.Fatalf("planBatches(%d, %d) = %v, want %v", tt.total, tt.size, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("batch %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestPlanBatchesCoverage(t *testing.T) {
	for _, total := range []int{1, 7, 499, 500, 501, 12345} {
		for _, size := range []int{1, 499, 500, 10000} {
			next := 0
			for _, b := range planBatches(total, size) {
				if b.offset != next {
					t.Fatalf("total=%d size=%d: batch starts at %d, want %d", total, size, b.offset, next)
				}
				if b.length <= 0 || b.length > size {
					t.Fatalf("total=%d size=%d: bad batch length %d", total, size, b.length)
				}
				next = b.offset + b.length
			}
			if next != total {
				t.Fatalf("total=%d size=%d: batches cover %d iterations", total, size, next)
			}
		}
	}
}

func TestDispatchExtent(t *testing.T) {
	tests := []struct {
		w, h  int
		wantX uint32
		wantY uint32
	}{
		{1, 1, 1, 1},
		{16, 16, 1, 1},
		{17, 16, 2, 1},
		{512, 512, 32, 32},
		{513, 100, 33, 7},
	}
	for _, tt := range tests {
		x, y := dispatchExtent(tt.w, tt.h)
		if x != tt.wantX || y != tt.wantY {
			t.Errorf("dispatchExtent(%d, %d) = (%d, %d), want (%d, %d)",
				tt.w, tt.h, x, y, tt.wantX, tt.wantY)
		}
	}
}
