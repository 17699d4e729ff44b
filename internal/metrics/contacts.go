package metrics

import "github.com/san-kum/forcesim/internal/dynamo"

// ContactRate averages resolved contacts per frame.
type ContactRate struct {
	name    string
	sum     int
	samples int
}

func NewContactRate() *ContactRate {
	return &ContactRate{
		name: "contact_rate",
	}
}

func (c *ContactRate) Name() string {
	return c.name
}

func (c *ContactRate) Observe(f *dynamo.Frame) {
	c.sum += f.Metrics.Collisions
	c.samples++
}

func (c *ContactRate) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return float64(c.sum) / float64(c.samples)
}

func (c *ContactRate) Reset() {
	c.sum = 0
	c.samples = 0
}
