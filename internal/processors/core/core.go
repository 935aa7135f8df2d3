// Package core holds the generic built-in processors.
package core

import "mediaflow/internal/processor"

// Register adds the core processors to reg.
func Register(reg *processor.Registry) {
	reg.MustRegister("core.SetAttributes", func() processor.Processor { return &SetAttributes{} })
	reg.MustRegister("core.DeleteAttributes", func() processor.Processor { return &DeleteAttributes{} })
	reg.MustRegister("core.SkipMatching", func() processor.Processor { return &SkipMatching{} })
	reg.MustRegister("core.PathGenerator", func() processor.Processor { return &PathGenerator{} })
	reg.MustRegister("core.FileGenerator", func() processor.Processor { return &FileGenerator{} })
	reg.MustRegister("core.ExpandClips", func() processor.Processor { return &ExpandClips{} })
	reg.MustRegister("core.Fail", func() processor.Processor { return &Fail{} })
	reg.MustRegister("core.Collect", func() processor.Processor { return &Collect{} })
}
