package testing

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jarvis/MissionControl/api/internal/db"
)

/* MemStore is an in-memory db.Store. Every call runs as its own
 * serialized transaction; WithTx bodies roll back on error. */
type MemStore struct {
	mu   *sync.Mutex
	data *memData
	inTx bool
}

type memData struct {
	workspaces map[uuid.UUID]db.Workspace
	users      map[uuid.UUID]db.User
	agents     map[uuid.UUID]db.Agent
	tokens     map[uuid.UUID]db.AgentToken
	events     []db.Event
	tasks      map[uuid.UUID]db.Task
	commands   map[uuid.UUID]db.Command
	bySource   map[uuid.UUID]uuid.UUID

	clock    func() time.Time
	last     time.Time
	failures map[string]error
	down     error
}

/* NewMemStore creates an empty store */
func NewMemStore() *MemStore {
	return &MemStore{
		mu: &sync.Mutex{},
		data: &memData{
			workspaces: map[uuid.UUID]db.Workspace{},
			users:      map[uuid.UUID]db.User{},
			agents:     map[uuid.UUID]db.Agent{},
			tokens:     map[uuid.UUID]db.AgentToken{},
			tasks:      map[uuid.UUID]db.Task{},
			commands:   map[uuid.UUID]db.Command{},
			bySource:   map[uuid.UUID]uuid.UUID{},
			clock:      time.Now,
			failures:   map[string]error{},
		},
	}
}

/* SetClock replaces the time source used for stored timestamps */
func (s *MemStore) SetClock(clock func() time.Time) {
	defer s.lock()()
	s.data.clock = clock
	s.data.last = time.Time{}
}

/* FailNext makes the next call of the named Store method return err */
func (s *MemStore) FailNext(method string, err error) {
	defer s.lock()()
	s.data.failures[method] = err
}

/* SetUnavailable makes every call fail with err until cleared with nil */
func (s *MemStore) SetUnavailable(err error) {
	defer s.lock()()
	s.data.down = err
}

/* Commands returns every stored command regardless of status */
func (s *MemStore) Commands() []db.Command {
	defer s.lock()()
	out := make([]db.Command, 0, len(s.data.commands))
	for _, c := range s.data.commands {
		out = append(out, c)
	}
	sortCommands(out)
	return out
}

/* Events returns every stored event in insertion order */
func (s *MemStore) Events() []db.Event {
	defer s.lock()()
	return append([]db.Event(nil), s.data.events...)
}

/* Agent returns the raw agent row */
func (s *MemStore) Agent(id uuid.UUID) (db.Agent, bool) {
	defer s.lock()()
	a, ok := s.data.agents[id]
	return a, ok
}

func (s *MemStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *MemStore) check(method string) error {
	if s.data.down != nil {
		return s.data.down
	}
	if err, ok := s.data.failures[method]; ok {
		delete(s.data.failures, method)
		return err
	}
	return nil
}

/* now returns strictly increasing timestamps */
func (d *memData) now() time.Time {
	t := d.clock().UTC()
	if !t.After(d.last) {
		t = d.last.Add(time.Microsecond)
	}
	d.last = t
	return t
}

func (d *memData) clone() *memData {
	c := *d
	c.workspaces = make(map[uuid.UUID]db.Workspace, len(d.workspaces))
	for k, v := range d.workspaces {
		c.workspaces[k] = v
	}
	c.users = make(map[uuid.UUID]db.User, len(d.users))
	for k, v := range d.users {
		c.users[k] = v
	}
	c.agents = make(map[uuid.UUID]db.Agent, len(d.agents))
	for k, v := range d.agents {
		c.agents[k] = v
	}
	c.tokens = make(map[uuid.UUID]db.AgentToken, len(d.tokens))
	for k, v := range d.tokens {
		c.tokens[k] = v
	}
	c.events = append([]db.Event(nil), d.events...)
	c.tasks = make(map[uuid.UUID]db.Task, len(d.tasks))
	for k, v := range d.tasks {
		c.tasks[k] = v
	}
	c.commands = make(map[uuid.UUID]db.Command, len(d.commands))
	for k, v := range d.commands {
		c.commands[k] = v
	}
	c.bySource = make(map[uuid.UUID]uuid.UUID, len(d.bySource))
	for k, v := range d.bySource {
		c.bySource[k] = v
	}
	return &c
}

// WithTx runs fn atomically, restoring the previous state when fn fails
func (s *MemStore) WithTx(ctx context.Context, fn func(db.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check("WithTx"); err != nil {
		return err
	}
	snapshot := s.data.clone()
	if err := fn(&MemStore{mu: s.mu, data: s.data, inTx: true}); err != nil {
		failures, down := s.data.failures, s.data.down
		*s.data = *snapshot
		s.data.failures, s.data.down = failures, down
		return err
	}
	return nil
}

// Ping reports the injected availability
func (s *MemStore) Ping(ctx context.Context) error {
	defer s.lock()()
	return s.check("Ping")
}

func (s *MemStore) CreateWorkspace(ctx context.Context, ws *db.Workspace) error {
	defer s.lock()()
	if err := s.check("CreateWorkspace"); err != nil {
		return err
	}
	if ws.ID == uuid.Nil {
		ws.ID = uuid.New()
	}
	ws.CreatedAt = s.data.now()
	s.data.workspaces[ws.ID] = *ws
	return nil
}

func (s *MemStore) CreateUser(ctx context.Context, user *db.User) error {
	defer s.lock()()
	if err := s.check("CreateUser"); err != nil {
		return err
	}
	for _, u := range s.data.users {
		if strings.EqualFold(u.Email, user.Email) {
			return db.ErrUniqueViolation
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = s.data.now()
	s.data.users[user.ID] = *user
	return nil
}

func (s *MemStore) GetUser(ctx context.Context, id uuid.UUID) (*db.User, error) {
	defer s.lock()()
	if err := s.check("GetUser"); err != nil {
		return nil, err
	}
	u, ok := s.data.users[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &u, nil
}

func (s *MemStore) GetUserByEmail(ctx context.Context, email string) (*db.User, error) {
	defer s.lock()()
	if err := s.check("GetUserByEmail"); err != nil {
		return nil, err
	}
	for _, u := range s.data.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, db.ErrNotFound
}

func (s *MemStore) GetUserByTokenHash(ctx context.Context, hash string) (*db.User, error) {
	defer s.lock()()
	if err := s.check("GetUserByTokenHash"); err != nil {
		return nil, err
	}
	for _, u := range s.data.users {
		if u.APITokenHash != nil && *u.APITokenHash == hash && u.APITokenRevokedAt == nil {
			return &u, nil
		}
	}
	return nil, db.ErrNotFound
}

func (s *MemStore) TouchUserToken(ctx context.Context, userID uuid.UUID) error {
	defer s.lock()()
	if err := s.check("TouchUserToken"); err != nil {
		return err
	}
	u, ok := s.data.users[userID]
	if !ok {
		return nil
	}
	now := s.data.now()
	u.APITokenLastUsedAt = &now
	s.data.users[userID] = u
	return nil
}

func (s *MemStore) SetUserToken(ctx context.Context, userID uuid.UUID, hash string, rotated bool) (*db.User, error) {
	defer s.lock()()
	if err := s.check("SetUserToken"); err != nil {
		return nil, err
	}
	u, ok := s.data.users[userID]
	if !ok {
		return nil, db.ErrNotFound
	}
	for id, other := range s.data.users {
		if id != userID && other.APITokenHash != nil && *other.APITokenHash == hash {
			return nil, db.ErrUniqueViolation
		}
	}
	now := s.data.now()
	h := hash
	u.APITokenHash = &h
	u.APITokenIssuedAt = &now
	u.APITokenLastRotatedAt = nil
	if rotated {
		u.APITokenLastRotatedAt = &now
	}
	u.APITokenRevokedAt = nil
	u.APITokenLastUsedAt = nil
	s.data.users[userID] = u
	return &u, nil
}

func (s *MemStore) RevokeUserToken(ctx context.Context, userID uuid.UUID) (bool, error) {
	defer s.lock()()
	if err := s.check("RevokeUserToken"); err != nil {
		return false, err
	}
	u, ok := s.data.users[userID]
	if !ok || !u.HasActiveToken() {
		return false, nil
	}
	now := s.data.now()
	u.APITokenRevokedAt = &now
	s.data.users[userID] = u
	return true, nil
}

func (s *MemStore) UpdateMonthlyBudget(ctx context.Context, userID uuid.UUID, budget float64) (*db.User, error) {
	defer s.lock()()
	if err := s.check("UpdateMonthlyBudget"); err != nil {
		return nil, err
	}
	u, ok := s.data.users[userID]
	if !ok {
		return nil, db.ErrNotFound
	}
	u.MonthlyBudget = budget
	s.data.users[userID] = u
	return &u, nil
}

func (s *MemStore) CreateAgent(ctx context.Context, agent *db.Agent) error {
	defer s.lock()()
	if err := s.check("CreateAgent"); err != nil {
		return err
	}
	if agent.ID == uuid.Nil {
		agent.ID = uuid.New()
	}
	if agent.Status == "" {
		agent.Status = db.AgentStatusIdle
	}
	agent.CreatedAt = s.data.now()
	s.data.agents[agent.ID] = *agent
	return nil
}

func (s *MemStore) CreateAgentToken(ctx context.Context, token *db.AgentToken) error {
	defer s.lock()()
	if err := s.check("CreateAgentToken"); err != nil {
		return err
	}
	for _, t := range s.data.tokens {
		if t.TokenHash == token.TokenHash {
			return db.ErrUniqueViolation
		}
	}
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	token.CreatedAt = s.data.now()
	s.data.tokens[token.ID] = *token
	return nil
}

func (s *MemStore) GetAgentIDByTokenHash(ctx context.Context, hash string) (uuid.UUID, error) {
	defer s.lock()()
	if err := s.check("GetAgentIDByTokenHash"); err != nil {
		return uuid.Nil, err
	}
	for _, t := range s.data.tokens {
		if t.TokenHash == hash && t.RevokedAt == nil {
			return t.AgentID, nil
		}
	}
	return uuid.Nil, db.ErrNotFound
}

func (s *MemStore) summarize(a db.Agent) db.AgentSummary {
	summary := db.AgentSummary{
		ID:          a.ID,
		Name:        a.Name,
		Status:      a.Status,
		Description: a.Description,
		CreatedAt:   a.CreatedAt,
		LastSeen:    a.CreatedAt,
	}
	var latest time.Time
	for _, e := range s.data.events {
		if e.AgentID != a.ID {
			continue
		}
		summary.TotalSpend += e.Cost
		summary.EventsCount++
		if e.CreatedAt.After(latest) {
			latest = e.CreatedAt
		}
	}
	switch {
	case a.LastSeenAt != nil:
		summary.LastSeen = *a.LastSeenAt
	case !latest.IsZero():
		summary.LastSeen = latest
	}
	var newest *db.AgentToken
	for _, t := range s.data.tokens {
		t := t
		if t.AgentID == a.ID && t.RevokedAt == nil && (newest == nil || t.CreatedAt.After(newest.CreatedAt)) {
			newest = &t
		}
	}
	if newest != nil {
		h := newest.TokenHash
		summary.TokenHash = &h
	}
	return summary
}

func (s *MemStore) GetAgentSummary(ctx context.Context, agentID, workspaceID uuid.UUID) (*db.AgentSummary, error) {
	defer s.lock()()
	if err := s.check("GetAgentSummary"); err != nil {
		return nil, err
	}
	a, ok := s.data.agents[agentID]
	if !ok || a.WorkspaceID != workspaceID {
		return nil, db.ErrNotFound
	}
	summary := s.summarize(a)
	return &summary, nil
}

func (s *MemStore) ListAgentSummaries(ctx context.Context, workspaceID uuid.UUID) ([]db.AgentSummary, error) {
	defer s.lock()()
	if err := s.check("ListAgentSummaries"); err != nil {
		return nil, err
	}
	out := []db.AgentSummary{}
	for _, a := range s.data.agents {
		if a.WorkspaceID == workspaceID {
			out = append(out, s.summarize(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemStore) AgentInWorkspace(ctx context.Context, agentID, workspaceID uuid.UUID) (bool, error) {
	defer s.lock()()
	if err := s.check("AgentInWorkspace"); err != nil {
		return false, err
	}
	a, ok := s.data.agents[agentID]
	return ok && a.WorkspaceID == workspaceID, nil
}

func (s *MemStore) RevokeAgentTokens(ctx context.Context, agentID uuid.UUID) (int64, error) {
	defer s.lock()()
	if err := s.check("RevokeAgentTokens"); err != nil {
		return 0, err
	}
	var n int64
	now := s.data.now()
	for id, t := range s.data.tokens {
		if t.AgentID == agentID && t.RevokedAt == nil {
			t.RevokedAt = &now
			s.data.tokens[id] = t
			n++
		}
	}
	return n, nil
}

func (s *MemStore) SetAgentStatus(ctx context.Context, agentID uuid.UUID, status string) error {
	defer s.lock()()
	if err := s.check("SetAgentStatus"); err != nil {
		return err
	}
	a, ok := s.data.agents[agentID]
	if !ok {
		return db.ErrNotFound
	}
	a.Status = status
	s.data.agents[agentID] = a
	return nil
}

func (s *MemStore) SetAgentStatusInWorkspace(ctx context.Context, agentID, workspaceID uuid.UUID, status string) (bool, error) {
	defer s.lock()()
	if err := s.check("SetAgentStatusInWorkspace"); err != nil {
		return false, err
	}
	a, ok := s.data.agents[agentID]
	if !ok || a.WorkspaceID != workspaceID {
		return false, nil
	}
	a.Status = status
	s.data.agents[agentID] = a
	return true, nil
}

func (s *MemStore) TouchAgentLastSeen(ctx context.Context, agentID uuid.UUID) error {
	defer s.lock()()
	if err := s.check("TouchAgentLastSeen"); err != nil {
		return err
	}
	a, ok := s.data.agents[agentID]
	if !ok {
		return nil
	}
	now := s.data.now()
	a.LastSeenAt = &now
	s.data.agents[agentID] = a
	return nil
}

func (s *MemStore) InsertEvent(ctx context.Context, event *db.Event) error {
	defer s.lock()()
	if err := s.check("InsertEvent"); err != nil {
		return err
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CompletedActions == nil {
		event.CompletedActions = db.StringList{}
	}
	event.CreatedAt = s.data.now()
	s.data.events = append(s.data.events, *event)
	return nil
}

func (s *MemStore) ListEvents(ctx context.Context, filter db.EventFilter) ([]db.Event, error) {
	defer s.lock()()
	if err := s.check("ListEvents"); err != nil {
		return nil, err
	}
	out := []db.Event{}
	for i := len(s.data.events) - 1; i >= 0; i-- {
		e := s.data.events[i]
		a, ok := s.data.agents[e.AgentID]
		if !ok || a.WorkspaceID != filter.WorkspaceID {
			continue
		}
		if filter.AgentID != nil && e.AgentID != *filter.AgentID {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemStore) InsertTask(ctx context.Context, task *db.Task) error {
	defer s.lock()()
	if err := s.check("InsertTask"); err != nil {
		return err
	}
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if task.CompletedActions == nil {
		task.CompletedActions = db.StringList{}
	}
	task.Status = db.TaskStatusPending
	task.CreatedAt = s.data.now()
	s.data.tasks[task.ID] = *task
	return nil
}

func (s *MemStore) taskInWorkspace(taskID, workspaceID uuid.UUID) (db.Task, db.Agent, bool) {
	t, ok := s.data.tasks[taskID]
	if !ok {
		return db.Task{}, db.Agent{}, false
	}
	a, ok := s.data.agents[t.AgentID]
	if !ok || a.WorkspaceID != workspaceID {
		return db.Task{}, db.Agent{}, false
	}
	return t, a, true
}

func (s *MemStore) DecidePendingTask(ctx context.Context, d db.Decision) (uuid.UUID, bool, error) {
	defer s.lock()()
	if err := s.check("DecidePendingTask"); err != nil {
		return uuid.Nil, false, err
	}
	t, _, ok := s.taskInWorkspace(d.TaskID, d.WorkspaceID)
	if !ok || t.Status != db.TaskStatusPending {
		return uuid.Nil, false, nil
	}
	now := s.data.now()
	decidedBy := d.DecidedBy
	t.Status = d.Status
	t.Comment = d.Comment
	t.DecidedBy = &decidedBy
	t.DecidedAt = &now
	s.data.tasks[t.ID] = t
	return t.AgentID, true, nil
}

func (s *MemStore) GetTaskStatus(ctx context.Context, taskID, workspaceID uuid.UUID) (string, error) {
	defer s.lock()()
	if err := s.check("GetTaskStatus"); err != nil {
		return "", err
	}
	t, _, ok := s.taskInWorkspace(taskID, workspaceID)
	if !ok {
		return "", db.ErrNotFound
	}
	return t.Status, nil
}

func (s *MemStore) CountPendingTasks(ctx context.Context, agentID uuid.UUID) (int, error) {
	defer s.lock()()
	if err := s.check("CountPendingTasks"); err != nil {
		return 0, err
	}
	n := 0
	for _, t := range s.data.tasks {
		if t.AgentID == agentID && t.Status == db.TaskStatusPending {
			n++
		}
	}
	return n, nil
}

func (s *MemStore) GetInboxItem(ctx context.Context, taskID, workspaceID uuid.UUID) (*db.InboxItem, error) {
	defer s.lock()()
	if err := s.check("GetInboxItem"); err != nil {
		return nil, err
	}
	t, a, ok := s.taskInWorkspace(taskID, workspaceID)
	if !ok {
		return nil, db.ErrNotFound
	}
	return &db.InboxItem{Task: t, AgentName: a.Name}, nil
}

func (s *MemStore) ListInboxItems(ctx context.Context, filter db.InboxFilter) ([]db.InboxItem, error) {
	defer s.lock()()
	if err := s.check("ListInboxItems"); err != nil {
		return nil, err
	}
	out := []db.InboxItem{}
	for _, t := range s.data.tasks {
		a, ok := s.data.agents[t.AgentID]
		if !ok || a.WorkspaceID != filter.WorkspaceID {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.AgentID != nil && t.AgentID != *filter.AgentID {
			continue
		}
		out = append(out, db.InboxItem{Task: t, AgentName: a.Name})
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := out[i].Status == db.TaskStatusPending, out[j].Status == db.TaskStatusPending
		if pi != pj {
			return pi
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemStore) InsertCommand(ctx context.Context, cmd *db.Command) error {
	defer s.lock()()
	if err := s.check("InsertCommand"); err != nil {
		return err
	}
	if cmd.SourceTaskID != nil {
		if _, exists := s.data.bySource[*cmd.SourceTaskID]; exists {
			return db.ErrUniqueViolation
		}
	}
	if cmd.ID == uuid.Nil {
		cmd.ID = uuid.New()
	}
	if cmd.Payload == nil {
		cmd.Payload = db.JSONBMap{}
	}
	cmd.Status = db.CommandStatusPending
	cmd.CreatedAt = s.data.now()
	s.data.commands[cmd.ID] = *cmd
	if cmd.SourceTaskID != nil {
		s.data.bySource[*cmd.SourceTaskID] = cmd.ID
	}
	return nil
}

func (s *MemStore) ListPendingCommands(ctx context.Context, agentID uuid.UUID, since *time.Time) ([]db.Command, error) {
	defer s.lock()()
	if err := s.check("ListPendingCommands"); err != nil {
		return nil, err
	}
	out := []db.Command{}
	for _, c := range s.data.commands {
		if c.AgentID != agentID || c.Status != db.CommandStatusPending {
			continue
		}
		if since != nil && c.CreatedAt.Before(*since) {
			continue
		}
		out = append(out, c)
	}
	sortCommands(out)
	return out, nil
}

func (s *MemStore) AckCommand(ctx context.Context, commandID, agentID uuid.UUID) (*db.Command, error) {
	defer s.lock()()
	if err := s.check("AckCommand"); err != nil {
		return nil, err
	}
	c, ok := s.data.commands[commandID]
	if !ok || c.AgentID != agentID {
		return nil, db.ErrNotFound
	}
	now := s.data.now()
	c.Status = db.CommandStatusAcked
	c.AckedAt = &now
	s.data.commands[commandID] = c
	return &c, nil
}

func (s *MemStore) SumWorkspaceSpend(ctx context.Context, workspaceID uuid.UUID, since time.Time) (float64, error) {
	defer s.lock()()
	if err := s.check("SumWorkspaceSpend"); err != nil {
		return 0, err
	}
	var total float64
	for _, e := range s.data.events {
		a, ok := s.data.agents[e.AgentID]
		if ok && a.WorkspaceID == workspaceID && !e.CreatedAt.Before(since) {
			total += e.Cost
		}
	}
	return total, nil
}

func (s *MemStore) ListAgentSpend(ctx context.Context, workspaceID uuid.UUID, since time.Time) ([]db.AgentSpend, error) {
	defer s.lock()()
	if err := s.check("ListAgentSpend"); err != nil {
		return nil, err
	}
	out := []db.AgentSpend{}
	for _, a := range s.data.agents {
		if a.WorkspaceID != workspaceID {
			continue
		}
		row := db.AgentSpend{AgentID: a.ID, AgentName: a.Name}
		for _, e := range s.data.events {
			if e.AgentID == a.ID && !e.CreatedAt.Before(since) {
				row.Spend += e.Cost
			}
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Spend != out[j].Spend {
			return out[i].Spend > out[j].Spend
		}
		return out[i].AgentName < out[j].AgentName
	})
	return out, nil
}

func sortCommands(cmds []db.Command) {
	sort.Slice(cmds, func(i, j int) bool {
		if !cmds[i].CreatedAt.Equal(cmds[j].CreatedAt) {
			return cmds[i].CreatedAt.Before(cmds[j].CreatedAt)
		}
		return cmds[i].ID.String() < cmds[j].ID.String()
	})
}

var _ db.Store = (*MemStore)(nil)
