package system

import (
	"testing"

	core "github.com/mafzaal/letstalk-index/internal/app/core/service"
)

type mockProvider struct{ desc core.Descriptor }

func (m mockProvider) Descriptor() core.Descriptor { return m.desc }

func TestCollectDescriptors(t *testing.T) {
	providers := []DescriptorProvider{
		mockProvider{desc: core.Descriptor{Name: "svc1", Layer: core.LayerPipeline}},
		mockProvider{desc: core.Descriptor{Name: "svc2", Layer: core.LayerControl}},
		mockProvider{desc: core.Descriptor{Name: "svc3", Layer: core.LayerPipeline}},
		nil,
	}

	descr := CollectDescriptors(providers)

	if len(descr) != 3 {
		t.Fatalf("expected 3 descriptors, got %d", len(descr))
	}
	if descr[0].Name != "svc2" || descr[1].Name != "svc1" || descr[2].Name != "svc3" {
		t.Fatalf("unexpected order: %#v", descr)
	}
}
