package assignment

import "go.uber.org/fx"

var Module = fx.Module("assignment.module",
	fx.Provide(NewService),
)
