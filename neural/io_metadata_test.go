package neural

import (
	"slices"
	"testing"
)

func TestDescriptorsMatchNetworkShape(t *testing.T) {
	if n := len(BrainInputDescriptors()); n != BrainInputs {
		t.Errorf("%d input descriptors, want %d", n, BrainInputs)
	}
	if n := len(BrainOutputDescriptors()); n != BrainOutputs {
		t.Errorf("%d output descriptors, want %d", n, BrainOutputs)
	}

	want := []string{"jump", "none"}
	if got := DescriptorIDs(BrainOutputDescriptors()); !slices.Equal(got, want) {
		t.Errorf("output IDs = %v, want %v", got, want)
	}
}
