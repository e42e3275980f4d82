package billing

import (
	billingdomain "github.com/znapsite/platform/internal/billing/domain"
	"github.com/znapsite/platform/internal/billing/service"
	"github.com/znapsite/platform/internal/processor"
	"go.uber.org/fx"
)

type itemCreatorParam struct {
	fx.In

	Service   billingdomain.Service
	Processor processor.Client `optional:"true"`
}

// newItemCreator exposes the add-on item path to the pricing flow only when
// a payment processor is actually configured.
func newItemCreator(p itemCreatorParam) billingdomain.ItemCreator {
	if p.Processor == nil {
		return nil
	}
	return p.Service
}

var Module = fx.Module("billing",
	fx.Provide(
		service.NewService,
		newItemCreator,
	),
)
