package router

import (
	"github.com/FairForge/multidb/internal/deprecation"
	"github.com/FairForge/multidb/internal/replica"
)

// NewMasterSlave is the old name of NewReplica.
//
// Deprecated: use NewReplica.
func NewMasterSlave(replicas *replica.Selector) *Replica {
	deprecation.Warn("router.NewMasterSlave", "NewMasterSlave is deprecated, use NewReplica")
	return NewReplica(replicas)
}

// NewPinningMasterSlave is the old name of NewPinning.
//
// Deprecated: use NewPinning.
func NewPinningMasterSlave(replicas *replica.Selector) *Pinning {
	deprecation.Warn("router.NewPinningMasterSlave", "NewPinningMasterSlave is deprecated, use NewPinning")
	return NewPinning(replicas)
}

// AllowSyncDB is the old name of AllowMigrate.
//
// Deprecated: use AllowMigrate.
func (r *Replica) AllowSyncDB(alias, app string) bool {
	deprecation.Warn("router.AllowSyncDB", "AllowSyncDB is deprecated, use AllowMigrate")
	return r.AllowMigrate(alias, app)
}
