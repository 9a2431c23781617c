package services

import (
	"github.com/facilityhub/facility/pkg/index"
	"github.com/facilityhub/facility/pkg/repository"
	"github.com/facilityhub/facility/pkg/types"
)

// EntityService is the full read/write surface of one record kind
type EntityService[T types.Entity[T]] struct {
	*EntitySynchronizer[T]
	*QueryGateway[T]

	Kind types.Kind
}

func NewEntityService[T types.Entity[T]](kind types.Kind, store repository.RecordStore[T], mirror SearchMirror[T], metrics *Metrics) *EntityService[T] {
	return &EntityService[T]{
		EntitySynchronizer: NewEntitySynchronizer(kind, store, mirror, metrics),
		QueryGateway:       NewQueryGateway(kind, store, mirror, metrics),
		Kind:               kind,
	}
}

// Services holds the entity services of every kind
type Services struct {
	Facilities *EntityService[*types.Facility]
	Rooms      *EntityService[*types.Room]
	Residents  *EntityService[*types.Resident]
}

func NewServices(stores repository.Stores, mirrors index.Mirrors, metrics *Metrics) *Services {
	return &Services{
		Facilities: NewEntityService[*types.Facility](types.KindFacility, stores.Facilities, mirrors.Facilities, metrics),
		Rooms:      NewEntityService[*types.Room](types.KindRoom, stores.Rooms, mirrors.Rooms, metrics),
		Residents:  NewEntityService[*types.Resident](types.KindResident, stores.Residents, mirrors.Residents, metrics),
	}
}
