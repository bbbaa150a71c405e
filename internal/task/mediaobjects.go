package task

// MediaObjects tracks whether every media object a task's spec
// references has been localized yet, grounded on spec.md §4.6's "map
// of object_id → local_path?" (no original_source/task_media_objects.rs
// was retrieved; this mirrors TaskFixedInstances' readiness-tracker
// shape for consistency with the sibling sub-machine).
type MediaObjects struct {
	localPaths map[string]string
}

// NewMediaObjects returns a tracker with no objects localized yet.
func NewMediaObjects() *MediaObjects {
	return &MediaObjects{localPaths: make(map[string]string)}
}

// NotifyLocalized records that objectID now has a local path, as
// reported once the domain has finished fetching it from its media
// store (media file transfer itself is outside this module).
func (m *MediaObjects) NotifyLocalized(objectID, localPath string) {
	m.localPaths[objectID] = localPath
}

// Forget drops a previously localized object, e.g. when a task's spec
// no longer references it.
func (m *MediaObjects) Forget(objectID string) {
	delete(m.localPaths, objectID)
}

// LocalPath returns the local path for objectID, if known.
func (m *MediaObjects) LocalPath(objectID string) (string, bool) {
	path, ok := m.localPaths[objectID]
	return path, ok
}

// AllReady reports whether every object in objectIDs has been
// localized.
func (m *MediaObjects) AllReady(objectIDs []string) bool {
	for _, id := range objectIDs {
		if _, ok := m.localPaths[id]; !ok {
			return false
		}
	}
	return true
}

// WaitingFor returns every id in objectIDs that hasn't been localized
// yet.
func (m *MediaObjects) WaitingFor(objectIDs []string) []string {
	var waiting []string
	for _, id := range objectIDs {
		if _, ok := m.localPaths[id]; !ok {
			waiting = append(waiting, id)
		}
	}
	return waiting
}
