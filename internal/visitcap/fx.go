package visitcap

import (
	"github.com/znapsite/platform/internal/visitcap/service"
	"go.uber.org/fx"
)

var Module = fx.Module("visitcap",
	fx.Provide(service.NewService),
)
