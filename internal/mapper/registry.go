package mapper

import (
	"fmt"

	"github.com/project-kessel/orgaud/internal/service"
)

// RegisterAll registers every mapper of this package with the registry,
// reporting transforms to the observer
func RegisterAll(registry *service.MapperRegistry, observer service.MapperObserver) error {
	celMapper, err := NewCELAudienceMapper(WithCELObserver(observer))
	if err != nil {
		return fmt.Errorf("failed to create CEL audience mapper: %w", err)
	}

	mappers := []service.ProtocolMapper{
		NewOrganizationAudienceMapper(WithObserver(observer)),
		celMapper,
	}
	for _, m := range mappers {
		if err := registry.Register(m); err != nil {
			return err
		}
	}
	return nil
}
