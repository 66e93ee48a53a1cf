package progress

import (
	"legion-prm/services/batch"

	"go.uber.org/fx"
)

var Module = fx.Module("progress.module",
	fx.Provide(
		func(s *batch.Service) BatchLister { return s },
		NewService,
	),
)
