package scanner

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		sizeBytes   int64
		thresholdKB float64
		wantKB      float64
		wantMB      float64
		qualifies   bool
	}{
		{"two MB file over one MB threshold", 2097152, 1000, 2048.00, 2.00, true},
		{"half MB file under one MB threshold", 512000, 1000, 500.00, 0.49, false},
		{"exactly at threshold does not qualify", 1024000, 1000, 1000.00, 0.98, false},
		{"one byte over threshold qualifies", 1024001, 1000, 1000.00, 0.98, true},
		{"tiny file", 10240, 1000, 10.00, 0.01, false},
		{"zero bytes", 0, 0, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.sizeBytes, tt.thresholdKB)
			if got.KB != tt.wantKB {
				t.Errorf("KB = %v, want %v", got.KB, tt.wantKB)
			}
			if got.MB != tt.wantMB {
				t.Errorf("MB = %v, want %v", got.MB, tt.wantMB)
			}
			if got.Qualifies != tt.qualifies {
				t.Errorf("Qualifies = %v, want %v", got.Qualifies, tt.qualifies)
			}
		})
	}
}

func TestClassify_RoundsHalfUp(t *testing.T) {
	// 5248 bytes is exactly 5.125 KB; half-up rounding gives 5.13.
	got := Classify(5248, 0)
	if got.KB != 5.13 {
		t.Fatalf("KB = %v, want 5.13", got.KB)
	}
}

func TestClassify_QualifiesMatchesRawRatio(t *testing.T) {
	// The decision uses the unrounded KB value.
	for _, b := range []int64{0, 1, 1023, 1024, 1025, 10240, 1048576, 2097152} {
		for _, threshold := range []float64{0, 1, 10, 1000} {
			got := Classify(b, threshold)
			want := float64(b)/1024 > threshold
			if got.Qualifies != want {
				t.Fatalf("Classify(%d, %v).Qualifies = %v, want %v", b, threshold, got.Qualifies, want)
			}
		}
	}
}
