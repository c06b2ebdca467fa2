package bubble

import "bubblestream/internal/bubbleid"

// Template is a session-less value describing a bubble to be created: it
// carries a desired role/type, pending content, and a pending config
// patch. Templates are reusable; Send binds a (possibly reused) template
// into a new Bubble each time it is called — multiple revisions of the
// source this runtime is modeled on disagreed on this point; this is the
// resolved behavior.
type Template struct {
	id      string
	hasID   bool
	patch   Patch
	content string
}

// New builds a detached Template from flat constructor parameters. It is
// pure and requires no active context. role defaults to "assistant", type
// defaults to "text".
func New(id string, opts ...Option) (*Template, error) {
	patch, err := buildPatch(opts)
	if err != nil {
		return nil, err
	}
	role := "assistant"
	if patch.Role != nil {
		role = *patch.Role
	}
	kind := "text"
	if patch.Type != nil {
		kind = *patch.Type
	}
	patch.Role = &role
	patch.Type = &kind

	return &Template{id: id, hasID: id != "", patch: patch}, nil
}

// SetContent prefills the template's pending content; if the template is
// later sent with a sink attached, a "set" frame follows the initial
// "config" frame (mirroring test_send_emits_prefilled_content).
func (t *Template) SetContent(content string) *Template {
	t.content = content
	return t
}

// Config layers additional flat-parameter Options onto the template before
// it is sent.
func (t *Template) Config(opts ...Option) (*Template, error) {
	extra, err := buildPatch(opts)
	if err != nil {
		return nil, err
	}
	if extra.Role != nil {
		t.patch.Role = extra.Role
	}
	if extra.Type != nil {
		t.patch.Type = extra.Type
	}
	t.patch.Config = applyPatch(t.patch.Config, extra.Config)
	return t, nil
}

// Send binds the template into session as a new Bubble. If sink is nil
// (no active stream, e.g. the history endpoint), the bubble is bound and
// recorded but emits nothing, and is marked done immediately.
func (t *Template) Send(session *Session) (*Bubble, error) {
	id := t.id
	if !t.hasID {
		id = bubbleid.New()
	}

	b := &Bubble{
		id:        id,
		role:      *t.patch.Role,
		kind:      *t.patch.Type,
		content:   t.content,
		config:    applyPatch(Config{}, t.patch.Config),
		createdAt: bubbleid.NowISO(),
		session:   session,
	}

	session.append(b)

	sink := session.snapshotSink()
	if sink == nil {
		b.done = true
		return b, nil
	}

	sink.Emit(Frame{
		"type":     "config",
		"bubbleId": b.id,
		"patch":    t.patch.WireMap(),
	})

	if t.content != "" {
		sink.Emit(Frame{
			"type":     "set",
			"bubbleId": b.id,
			"content":  t.content,
		})
	}

	return b, nil
}

// Record is the plain, JSON-serializable snapshot of a bubble, used for
// history responses and the Record()/FromRecord round trip.
type Record struct {
	ID        string  `json:"id"`
	Role      string  `json:"role"`
	Content   string  `json:"content"`
	Type      string  `json:"type"`
	Config    Config  `json:"config"`
	CreatedAt *string `json:"createdAt"`
}

// Record renders the template as a plain record without binding it to any
// session — used when a history handler wants to hand back an unsent
// draft (test_history_handler_accepts_bubble_templates's Go analogue).
func (t *Template) Record() Record {
	id := t.id
	if !t.hasID {
		id = bubbleid.New()
	}
	return Record{
		ID:      id,
		Role:    *t.patch.Role,
		Content: t.content,
		Type:    *t.patch.Type,
		Config:  applyPatch(Config{}, t.patch.Config),
	}
}

// FromRecord reconstructs a bound-but-detached Bubble from a plain record,
// used by history seeding (LoadHistory). The returned bubble has no owning
// session reference and is always done=true.
func FromRecord(rec Record) *Bubble {
	role := rec.Role
	if role == "" {
		role = "assistant"
	}
	kind := rec.Type
	if kind == "" {
		kind = "text"
	}
	cfg := rec.Config
	if cfg == nil {
		cfg = Config{}
	}
	id := rec.ID
	if id == "" {
		id = bubbleid.New()
	}
	return &Bubble{
		id:        id,
		role:      role,
		kind:      kind,
		content:   rec.Content,
		config:    cfg,
		createdAt: derefOrNil(rec.CreatedAt),
		done:      true,
	}
}

func derefOrNil(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ToOpenAIMessage converts a Record to an OpenAI-style chat message map,
// ported from the original toolkit's json_bubble_to_openai.
func ToOpenAIMessage(rec Record) map[string]string {
	role := rec.Role
	if role == "" {
		role = "assistant"
	}
	return map[string]string{"role": role, "content": rec.Content}
}
