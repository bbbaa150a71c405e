package restapi

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/doismellburning/audiocloud-domain/internal/apierror"
	"github.com/doismellburning/audiocloud-domain/internal/fixedinstance"
	"github.com/doismellburning/audiocloud-domain/internal/instancesup"
	"github.com/doismellburning/audiocloud-domain/internal/kv"
	"github.com/doismellburning/audiocloud-domain/internal/task"
	"github.com/doismellburning/audiocloud-domain/internal/tasksup"
)

// InstanceRegistry is the subset of the Instance Supervisor's
// configuration API the REST surface needs - grounded on spec.md §6's
// "PUT /v1/instances: Replace instance registry".
type InstanceRegistry interface {
	SetConfiguration(instances map[string]instancesup.InstanceConfig)
	Actor(instanceID string) (*fixedinstance.Actor, bool)
}

// TaskRegistry is the subset of the Tasks Supervisor's API the REST
// surface needs.
type TaskRegistry interface {
	SetConfiguration(configs map[string]tasksup.Config)
	Actor(taskID string) (*task.Actor, bool)
}

// API binds the REST handlers of spec.md §6 to the concrete
// supervisors and store backing this domain server.
type API struct {
	instances InstanceRegistry
	tasks     TaskRegistry
	store     kv.Store
}

// NewAPI returns an API ready to be registered on a Server via
// RegisterRoutes.
func NewAPI(instances InstanceRegistry, tasks TaskRegistry, store kv.Store) *API {
	return &API{instances: instances, tasks: tasks, store: store}
}

// RegisterRoutes wires every handler in this file onto server.
func (a *API) RegisterRoutes(server *Server) {
	server.Handle("/v1/instances", a.handlePutInstances)
	server.Handle("/v1/media", a.handlePutMedia)
	server.Handle("/v1/tasks/", a.handleTask)
	server.Handle("/v1/parameters/", a.handleParameters)
}

// instanceRegistryDoc is the wire shape of PUT /v1/instances, grounded
// on spec.md §3's InstanceSpec plus the routing fields InstanceConfig
// needs.
type instanceRegistryDoc struct {
	ID                string             `json:"id"`
	DriverID          string             `json:"driver_id"`
	HasPower          bool               `json:"has_power"`
	HasMedia          bool               `json:"has_media"`
	DefaultParameters map[string]float64 `json:"default_parameters"`
}

func (a *API) handlePutInstances(w http.ResponseWriter, r *http.Request, c codec) error {
	if r.Method != http.MethodPut {
		return apierror.New(apierror.BadRequest, "method %s not allowed", r.Method)
	}

	var docs []instanceRegistryDoc
	if err := decodeBody(r, c, &docs); err != nil {
		return err
	}

	configs := make(map[string]instancesup.InstanceConfig, len(docs))
	for _, doc := range docs {
		cfg := instancesup.InstanceConfig{
			ID:                doc.ID,
			DriverID:          doc.DriverID,
			HasMedia:          doc.HasMedia,
			DefaultParameters: doc.DefaultParameters,
		}
		if doc.HasPower {
			cfg.Power = &fixedinstance.PowerConfig{}
		}
		configs[doc.ID] = cfg
		if err := a.store.Put(kv.BucketInstanceSpec, doc.ID, doc); err != nil {
			return apierror.Wrap(apierror.Internal, err, "persisting instance %s", doc.ID)
		}
	}

	a.instances.SetConfiguration(configs)
	return writeJSON(w, c, http.StatusOK, struct{}{})
}

func (a *API) handlePutMedia(w http.ResponseWriter, r *http.Request, c codec) error {
	if r.Method != http.MethodPut {
		return apierror.New(apierror.BadRequest, "method %s not allowed", r.Method)
	}

	var docs []map[string]any
	if err := decodeBody(r, c, &docs); err != nil {
		return err
	}
	for _, doc := range docs {
		id, _ := doc["id"].(string)
		if id == "" {
			return apierror.New(apierror.BadRequest, "media object missing id")
		}
		if err := a.store.Put(kv.BucketMediaSpec, id, doc); err != nil {
			return apierror.Wrap(apierror.Internal, err, "persisting media object %s", id)
		}
	}
	return writeJSON(w, c, http.StatusOK, struct{}{})
}

// taskSpecDoc is the wire shape of task spec bodies. From/To are
// RFC3339 timestamps bounding the task's reservation window - an
// absent (zero) pair defaults to "starting now, for 24h" so a task
// created without an explicit window still activates rather than
// sitting forever below tasksup.Reservation.containsNow's threshold.
type taskSpecDoc struct {
	FixedInstanceIDs []string  `json:"fixed_instance_ids"`
	MediaObjectIDs   []string  `json:"media_object_ids"`
	EngineID         string    `json:"engine_id"`
	From             time.Time `json:"from"`
	To               time.Time `json:"to"`
}

// handleTask dispatches every method/subpath under /v1/tasks/{app}/{task}
// and its /transport/{verb} suffix, grounded on spec.md §6's task and
// transport-command rows.
func (a *API) handleTask(w http.ResponseWriter, r *http.Request, c codec) error {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/tasks/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) < 2 {
		return apierror.New(apierror.BadRequest, "expected /v1/tasks/{app}/{task}[/transport/{verb}]")
	}
	app, taskName := parts[0], parts[1]
	taskID := app + "/" + taskName

	if len(parts) >= 4 && parts[2] == "transport" {
		return a.handleTransportCommand(w, r, c, taskID, parts[3])
	}

	switch r.Method {
	case http.MethodPut:
		return a.putTaskSpec(w, r, c, taskID)
	case http.MethodPatch:
		return a.patchTaskSpec(w, r, c, taskID)
	case http.MethodDelete:
		return a.deleteTask(w, r, c, taskID)
	default:
		return apierror.New(apierror.BadRequest, "method %s not allowed on a task", r.Method)
	}
}

func (a *API) putTaskSpec(w http.ResponseWriter, r *http.Request, c codec, taskID string) error {
	var doc taskSpecDoc
	if err := decodeBody(r, c, &doc); err != nil {
		return err
	}
	if err := a.store.Put(kv.BucketTaskSpec, taskID, doc); err != nil {
		return apierror.Wrap(apierror.Internal, err, "persisting task %s", taskID)
	}
	if err := a.syncTaskConfiguration(); err != nil {
		return err
	}
	return writeJSON(w, c, http.StatusOK, struct{}{})
}

// syncTaskConfiguration rebuilds the Tasks Supervisor's full
// configuration set from every spec currently in the store.
// SetConfiguration adds or updates the tasks it is given and leaves
// any other task in place, so a task whose spec was deleted stays
// known to the supervisor until its reservation plus grace period
// has passed.
func (a *API) syncTaskConfiguration() error {
	ids, err := a.store.List(kv.BucketTaskSpec)
	if err != nil {
		return apierror.Wrap(apierror.Internal, err, "listing task specs")
	}

	configs := make(map[string]tasksup.Config, len(ids))
	for _, taskID := range ids {
		var doc taskSpecDoc
		if err := a.store.Get(kv.BucketTaskSpec, taskID, &doc); err != nil {
			continue
		}
		from, to := doc.From, doc.To
		if from.IsZero() && to.IsZero() {
			from = time.Now()
			to = from.Add(24 * time.Hour)
		}
		configs[taskID] = tasksup.Config{
			ID:          taskID,
			Reservation: tasksup.Reservation{From: from, To: to},
			Spec: task.Spec{
				FixedInstanceIDs: doc.FixedInstanceIDs,
				MediaObjectIDs:   doc.MediaObjectIDs,
			},
		}
	}
	a.tasks.SetConfiguration(configs)
	return nil
}

// patchTaskSpec applies a ModifyTaskSpec list - spec.md §6's PATCH
// row. Structural modification while a task holds a play/render
// session is rejected with IllegalState per spec.md §7's "modify-spec
// while playing" row; this server has no visibility into the actor's
// current session beyond whether one exists, so any live actor is
// treated as ineligible for PATCH.
func (a *API) patchTaskSpec(w http.ResponseWriter, r *http.Request, c codec, taskID string) error {
	if _, ok := a.tasks.Actor(taskID); ok {
		return apierror.New(apierror.IllegalState, "task %s is active; stop it before modifying its spec", taskID)
	}

	var ops []map[string]any
	if err := decodeBody(r, c, &ops); err != nil {
		return err
	}

	var doc taskSpecDoc
	if err := a.store.Get(kv.BucketTaskSpec, taskID, &doc); err != nil {
		return apierror.Wrap(apierror.NotFound, err, "task %s has no spec to modify", taskID)
	}
	for _, op := range ops {
		switch op["op"] {
		case "add_fixed_instance":
			if id, ok := op["id"].(string); ok {
				doc.FixedInstanceIDs = append(doc.FixedInstanceIDs, id)
			}
		case "remove_fixed_instance":
			if id, ok := op["id"].(string); ok {
				doc.FixedInstanceIDs = removeString(doc.FixedInstanceIDs, id)
			}
		}
	}
	if err := a.store.Put(kv.BucketTaskSpec, taskID, doc); err != nil {
		return apierror.Wrap(apierror.Internal, err, "persisting modified task %s", taskID)
	}
	if err := a.syncTaskConfiguration(); err != nil {
		return err
	}
	return writeJSON(w, c, http.StatusOK, doc)
}

// deleteTask stops taskID's actor, if one is currently live, removes
// its persisted spec, and reloads the Tasks Supervisor's
// configuration set from what's left in the store.
func (a *API) deleteTask(w http.ResponseWriter, r *http.Request, c codec, taskID string) error {
	if actor, ok := a.tasks.Actor(taskID); ok {
		actor.RequestStop()
	}
	if err := a.store.Delete(kv.BucketTaskSpec, taskID); err != nil {
		return apierror.Wrap(apierror.Internal, err, "deleting task %s", taskID)
	}
	if err := a.syncTaskConfiguration(); err != nil {
		return err
	}
	return writeJSON(w, c, http.StatusOK, struct{}{})
}

// handleTransportCommand dispatches play|seek|stop|render|cancel -
// spec.md §6's transport row.
func (a *API) handleTransportCommand(w http.ResponseWriter, r *http.Request, c codec, taskID, verb string) error {
	actor, ok := a.tasks.Actor(taskID)
	if !ok {
		return apierror.New(apierror.NotFound, "task %s is not active", taskID)
	}

	var body struct {
		PlayID   string `json:"play_id"`
		RenderID string `json:"render_id"`
	}
	_ = decodeBody(r, c, &body)

	var err error
	switch verb {
	case "play":
		err = actor.RequestPlay(body.PlayID)
	case "seek":
		err = actor.RequestSeek(body.PlayID)
	case "render":
		err = actor.RequestRender(body.RenderID)
	case "stop", "cancel":
		actor.RequestStop()
	default:
		return apierror.New(apierror.BadRequest, "unknown transport command %q", verb)
	}
	if err != nil {
		return err
	}
	return writeJSON(w, c, http.StatusOK, struct{}{})
}

// handleParameters dispatches the three parameter routes of spec.md
// §6 under the shared prefix /v1/parameters/{mfr}/{name}/{inst}
// [/{paramID}].
func (a *API) handleParameters(w http.ResponseWriter, r *http.Request, c codec) error {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/parameters/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) < 3 {
		return apierror.New(apierror.BadRequest, "expected /v1/parameters/{mfr}/{name}/{inst}[/{param}]")
	}
	instanceID := strings.Join(parts[:3], "/")

	actor, ok := a.instances.Actor(instanceID)
	if !ok {
		return apierror.New(apierror.NotFound, "instance %s is not active", instanceID)
	}

	switch {
	case len(parts) == 3 && r.Method == http.MethodGet:
		var doc map[string]float64
		if err := a.store.Get(kv.BucketInstanceState, instanceID, &doc); err != nil {
			doc = map[string]float64{}
		}
		return writeJSON(w, c, http.StatusOK, doc)

	case len(parts) == 3 && r.Method == http.MethodPut:
		var params map[string]float64
		if err := decodeBody(r, c, &params); err != nil {
			return err
		}
		actor.SetParameters(params)
		return writeJSON(w, c, http.StatusOK, struct{}{})

	case len(parts) == 4 && r.Method == http.MethodPost:
		var value struct {
			Value float64 `json:"value"`
		}
		if err := decodeBody(r, c, &value); err != nil {
			return err
		}
		actor.SetParameters(map[string]float64{parts[3]: value.Value})
		return writeJSON(w, c, http.StatusOK, struct{}{})

	default:
		return apierror.New(apierror.BadRequest, "unsupported method %s for this parameter route", r.Method)
	}
}

func decodeBody(r *http.Request, c codec, dest any) error {
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return apierror.Wrap(apierror.BadRequest, err, "reading request body")
	}
	if len(body) == 0 {
		return nil
	}
	if err := c.Decode(body, dest); err != nil {
		return apierror.Wrap(apierror.BadRequest, err, "decoding request body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, c codec, status int, v any) error {
	body, err := c.Encode(v)
	if err != nil {
		return apierror.Wrap(apierror.Internal, err, "encoding response")
	}
	w.Header().Set("Content-Type", c.ContentType())
	w.WriteHeader(status)
	_, _ = w.Write(body)
	return nil
}

func removeString(items []string, target string) []string {
	out := items[:0]
	for _, item := range items {
		if item != target {
			out = append(out, item)
		}
	}
	return out
}
