package agent

import (
	"legion-prm/services/batch"
	"legion-prm/services/monitoring"

	"go.uber.org/fx"
)

var Module = fx.Module("agent.module",
	fx.Provide(
		func(s *batch.Service) PoolSource { return s },
		func(s *monitoring.Service) StatusSource { return s },
		NewService,
	),
)
