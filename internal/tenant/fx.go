package tenant

import (
	"github.com/znapsite/platform/internal/tenant/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("tenant",
	fx.Provide(repository.New),
)
