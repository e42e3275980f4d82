package aggregation

import (
	"github.com/znapsite/platform/internal/aggregation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("aggregation",
	fx.Provide(service.NewService),
)
