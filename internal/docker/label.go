package docker

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mmr-tortoise/clovis-desktop/internal/model"
)

// Label key constants define the Docker label keys stamped on every
// backend container started by the container launcher. Labels are the
// only record of which application launch owns a container: nothing is
// written to disk, so a crashed session can still be identified later by
// inspecting the daemon alone.
//
// All keys share the "clovis." prefix so they do not collide with labels
// set by other tools.
const (
	// LabelPrefix is the common prefix for all clovis labels.
	LabelPrefix = "clovis."

	// LabelManagedBy identifies containers created by this application.
	// It is the label used for filtering in ListManagedContainers.
	// Key: "clovis.managed-by", Value: always ManagedByValue.
	LabelManagedBy = LabelPrefix + "managed-by"

	// LabelSession stores the id of the launch that created the container.
	// RemoveOrphans compares it with the current launch's id.
	// Key: "clovis.session", Value: a uuid v4 string.
	LabelSession = LabelPrefix + "session"

	// LabelPort stores the reserved host port the backend is published on.
	// Key: "clovis.port", Value: decimal port (e.g. "53211").
	LabelPort = LabelPrefix + "port"

	// LabelScript stores the host path of the backend bundle mounted into
	// the container.
	// Key: "clovis.script", Value: absolute path.
	LabelScript = LabelPrefix + "script"

	// LabelCreatedAt stores the creation timestamp.
	// Key: "clovis.created-at", Value: RFC3339 formatted timestamp in UTC.
	LabelCreatedAt = LabelPrefix + "created-at"
)

// ManagedByValue is the constant value for the LabelManagedBy label.
// Every container created by the container launcher carries it, which is
// what lets the list and clean commands find them through a Docker API
// label filter.
const ManagedByValue = "clovis-desktop"

// requiredLabels are the keys ParseLabels insists on. A container missing
// any of them was not created by this version of the launcher, or had its
// labels edited by hand.
var requiredLabels = []string{
	LabelManagedBy,
	LabelSession,
	LabelPort,
	LabelScript,
	LabelCreatedAt,
}

// BuildLabels constructs the Docker label map for a backend container.
// The result is passed to ContainerCreate unchanged, and ParseLabels can
// rebuild the same BackendContainer from it. Times are stored in UTC and
// truncated to whole seconds by the RFC3339 format.
func BuildLabels(b *model.BackendContainer) map[string]string {
	return map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelSession:   b.Session,
		LabelPort:      strconv.Itoa(b.Port),
		LabelScript:    b.Script,
		LabelCreatedAt: b.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ParseLabels reconstructs a BackendContainer from container labels. It is
// the inverse of BuildLabels.
//
// Validation happens in this order:
//
//  1. every key in requiredLabels is present (all missing keys are
//     reported together, so a hand-edited container is diagnosed in one
//     pass);
//  2. LabelManagedBy equals ManagedByValue;
//  3. LabelPort is a decimal number in 1..65535;
//  4. LabelCreatedAt parses as RFC3339.
//
// The Container field of the result is left nil; ListBackends fills it.
func ParseLabels(labels map[string]string) (*model.BackendContainer, error) {
	var missing []string
	for _, key := range requiredLabels {
		if _, ok := labels[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required Docker labels: %s", strings.Join(missing, ", "))
	}

	if labels[LabelManagedBy] != ManagedByValue {
		return nil, fmt.Errorf(
			"label %s has unexpected value %q (expected %q)",
			LabelManagedBy, labels[LabelManagedBy], ManagedByValue,
		)
	}

	p, err := strconv.Atoi(labels[LabelPort])
	if err != nil || p < 1 || p > 65535 {
		return nil, fmt.Errorf("invalid label %s: %q is not a port", LabelPort, labels[LabelPort])
	}

	createdAt, err := time.Parse(time.RFC3339, labels[LabelCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("invalid label %s: %w", LabelCreatedAt, err)
	}

	return &model.BackendContainer{
		Session:   labels[LabelSession],
		Port:      p,
		Script:    labels[LabelScript],
		CreatedAt: createdAt,
	}, nil
}

// FilterLabels returns the label selector matching every managed container.
// Callers turn each entry into a "key=value" label filter for
// ContainerList.
func FilterLabels() map[string]string {
	return map[string]string{
		LabelManagedBy: ManagedByValue,
	}
}
