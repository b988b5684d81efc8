package service

// Layer describes the architectural slice a component belongs to: where it
// sits between the HTTP control surface and the vector store it eventually
// mutates.
type Layer string

const (
	LayerControl  Layer = "control"
	LayerPipeline Layer = "pipeline"
	LayerStorage  Layer = "storage"
	LayerSupport  Layer = "support"
)

// Descriptor advertises a component's placement and capabilities. It does not
// change runtime behavior; it lets the health checker and HTTP control
// surface introspect what is wired into the running Application.
type Descriptor struct {
	Name         string
	Domain       string
	Layer        Layer
	Capabilities []string
}

// WithCapabilities returns a copy of the descriptor with additional
// capabilities appended.
func (d Descriptor) WithCapabilities(caps ...string) Descriptor {
	if len(caps) == 0 {
		return d
	}
	combined := make([]string, 0, len(d.Capabilities)+len(caps))
	combined = append(combined, d.Capabilities...)
	combined = append(combined, caps...)
	d.Capabilities = combined
	return d
}
