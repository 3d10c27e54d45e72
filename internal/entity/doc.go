// Package entity provides the persistent entity and device registry of
// Gray Logic Tracker.
//
// Every tracked host of a router gets a device entry (keyed by MAC within
// the router's config entry) and two entities: a device_tracker entity with
// unique id "<MAC>" and a switch entity "<MAC>_internet_access". The
// registry survives restarts so that the cleanup service can remove entries
// for hosts the router has forgotten.
//
// # Architecture
//
//	┌──────────────────┐    ┌──────────────────┐
//	│     Registry     │    │    Repository    │
//	│  (registry.go)   │───▶│ (repository.go)  │──▶ SQLite (entities, devices)
//	│ • get-or-create  │    │ • SQL queries    │
//	│ • in-memory cache│    │ • cascading      │
//	│ • thread safety  │    │   device removal │
//	└──────────────────┘    └──────────────────┘
//
// # Usage
//
//	repo := entity.NewSQLiteRepository(db)
//	reg := entity.NewRegistry(repo)
//	if err := reg.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	dev, err := reg.GetOrCreateDevice(ctx, entity.DeviceParams{
//	    ConfigEntryID: "fritz",
//	    MAC:           "AA:BB:CC:DD:EE:FF",
//	    Name:          "laptop",
//	})
//	ent, err := reg.GetOrCreateEntity(ctx, entity.EntityParams{
//	    ConfigEntryID: "fritz",
//	    Domain:        entity.DomainDeviceTracker,
//	    UniqueID:      "AA:BB:CC:DD:EE:FF",
//	    DeviceID:      dev.ID,
//	})
package entity
