package plugin

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/plugboard/plugboard/pkg/access"
	"github.com/plugboard/plugboard/pkg/observability"
	"github.com/plugboard/plugboard/pkg/store"
)

const groupsCollection = "groups"

// StoreGroupSource reads the user-manageable group records from the
// entity store for composition's dynamic group-resource permissions.
func StoreGroupSource(st store.Store) access.GroupSource {
	return access.GroupSourceFunc(func(ctx context.Context) ([]access.GroupRecord, error) {
		if st == nil {
			return nil, nil
		}
		recs, err := st.Find(ctx, groupsCollection, store.Filter{}, nil)
		if err != nil {
			return nil, err
		}
		out := make([]access.GroupRecord, 0, len(recs))
		for _, rec := range recs {
			out = append(out, access.GroupRecord{
				ID:   rec.GetString("id"),
				Name: rec.GetString("name"),
			})
		}
		return out, nil
	})
}

// Recomposer runs the full discover-compose-swap cycle: at boot, on
// filesystem changes, and on the optional schedule.
type Recomposer struct {
	discovery    *Discovery
	store        store.Store
	registry     *Registry
	root         string
	superAdminID string
	log          *logrus.Logger
	metrics      *observability.Metrics
}

// NewRecomposer creates a recomposer. The registry may start empty; the
// first Run installs the initial snapshot.
func NewRecomposer(d *Discovery, st store.Store, registry *Registry, root, superAdminID string, log *logrus.Logger) *Recomposer {
	if log == nil {
		log = logrus.New()
	}
	return &Recomposer{
		discovery:    d,
		store:        st,
		registry:     registry,
		root:         root,
		superAdminID: superAdminID,
		log:          log,
	}
}

// SetMetrics attaches composition accounting to the recomposer and its
// discovery. May be nil.
func (r *Recomposer) SetMetrics(m *observability.Metrics) {
	r.metrics = m
	r.discovery.SetMetrics(m)
}

func (r *Recomposer) observe(outcome string, start time.Time, loaded int) {
	if r.metrics != nil {
		r.metrics.ObserveComposition(outcome, time.Since(start), loaded)
	}
}

// Run discovers extensions, composes the permission tree, and swaps the
// new snapshot in atomically. On error the previous snapshot stays
// active.
func (r *Recomposer) Run(ctx context.Context) error {
	start := time.Now()

	descriptors, err := r.discovery.Discover(ctx, r.root)
	if err != nil {
		r.observe("error", start, 0)
		return err
	}

	tree, scopes, err := access.Compose(ctx, Contributions(descriptors), StoreGroupSource(r.store))
	if err != nil {
		r.observe("error", start, 0)
		return err
	}

	r.registry.Swap(&Snapshot{
		Descriptors: descriptors,
		Tree:        tree,
		Scopes:      scopes,
		Engine:      access.NewEngine(tree, r.superAdminID),
	})
	r.observe("success", start, len(descriptors))
	r.log.Infof("Composed %d extensions into %d permission groups and %d scopes",
		len(descriptors), len(tree.Groups), len(scopes))
	return nil
}
