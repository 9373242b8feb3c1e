package feed

import (
	"context"
	"sort"
	"sync"
	"time"

	"aqi_monitor/internal/models"
	"aqi_monitor/internal/stats"
	"aqi_monitor/pkg/logger"
)

const eventBuffer = 64

// source guarda o último estado conhecido de uma fonte
type source struct {
	current *models.Reading
	history []models.Reading
}

// Selector decide, a cada evento, qual fonte é autoridade para a leitura
// atual e qual é autoridade para o histórico
type Selector struct {
	historySize int
	events      chan Event
	done        chan struct{}
	now         func() time.Time

	mutex        sync.Mutex
	local        source
	external     source
	extConnected bool
	snapshot     Snapshot
	published    bool
	subscribers  map[int]chan Snapshot
	nextSub      int
	closed       bool
}

// NewSelector cria um seletor que mantém até historySize pontos por fonte
func NewSelector(historySize int) *Selector {
	if historySize <= 0 {
		historySize = 100
	}
	return &Selector{
		historySize: historySize,
		events:      make(chan Event, eventBuffer),
		done:        make(chan struct{}),
		now:         time.Now,
		snapshot:    Snapshot{State: StateNoFeed, HistoryOrigin: OriginLocal, History: []models.Reading{}},
		subscribers: make(map[int]chan Snapshot),
	}
}

// Publish entrega um evento ao loop do seletor. Retorna false se o seletor já parou.
func (s *Selector) Publish(ev Event) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

// Run processa eventos até ctx ser cancelado e então fecha os assinantes
func (s *Selector) Run(ctx context.Context) {
	defer s.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.events:
			s.Apply(ev)
		}
	}
}

func (s *Selector) shutdown() {
	close(s.done)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.closed = true
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	logger.Info("Seletor de fonte parado")
}

// Apply aplica um evento de forma síncrona e notifica os assinantes se o
// estado mudou. Retorna true quando houve mudança.
func (s *Selector) Apply(ev Event) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	switch ev.Origin {
	case OriginLocal:
		s.applyLocal(ev)
	case OriginExternal:
		s.applyExternal(ev)
	default:
		logger.Warnf("Evento de origem desconhecida ignorado: %q", ev.Origin)
		return false
	}

	next := s.evaluate()
	if s.published && sameSnapshot(s.snapshot, next) {
		return false
	}

	if next.State != s.snapshot.State {
		logger.Infof("Fonte da leitura atual: %s -> %s", s.snapshot.State, next.State)
	}
	if next.HistoryOrigin != s.snapshot.HistoryOrigin {
		logger.Infof("Origem do histórico: %s -> %s", s.snapshot.HistoryOrigin, next.HistoryOrigin)
	}

	s.snapshot = next
	s.published = true
	s.notify(next)
	return true
}

func (s *Selector) applyLocal(ev Event) {
	switch ev.Kind {
	case EventReading:
		if ev.History != nil && !s.stale(ev.History) {
			s.local.history = s.capped(ev.History)
		} else if ev.Reading != nil {
			s.local.history = s.insert(s.local.history, *ev.Reading)
		}
		if ev.Reading != nil && (s.local.current == nil || ev.Reading.Newer(*s.local.current)) {
			r := *ev.Reading
			s.local.current = &r
		}
	case EventHistory:
		s.local.history = s.capped(ev.History)
		if n := len(s.local.history); n > 0 {
			last := s.local.history[n-1]
			if s.local.current == nil || last.Newer(*s.local.current) {
				s.local.current = &last
			}
		}
	}
}

func (s *Selector) applyExternal(ev Event) {
	switch ev.Kind {
	case EventConnected:
		s.extConnected = true
	case EventDisconnected:
		if s.extConnected {
			logger.Warn("Fonte externa desconectada")
		}
		s.extConnected = false
		s.external = source{}
	case EventReading:
		s.extConnected = true
		if ev.Reading != nil {
			r := *ev.Reading
			s.external.current = &r
		}
	case EventHistory:
		s.extConnected = true
		s.external.history = s.capped(ev.History)
	}
}

// evaluate calcula o snapshot a partir do estado das fontes
func (s *Selector) evaluate() Snapshot {
	snap := Snapshot{
		State:             StateNoFeed,
		HistoryOrigin:     OriginLocal,
		ExternalConnected: s.extConnected,
		UpdatedAt:         s.now(),
	}

	switch {
	case s.extConnected && s.external.current != nil:
		snap.State = StateExternal
		snap.Current = copyReading(s.external.current)
	case s.local.current != nil:
		snap.State = StateSimulated
		snap.Current = copyReading(s.local.current)
	}

	history := s.local.history
	if s.extConnected && len(s.external.history) > 0 {
		snap.HistoryOrigin = OriginExternal
		history = s.external.history
	}
	snap.History = append([]models.Reading{}, history...)

	snap.Status = stats.ClassifyReading(snap.Current)
	snap.Summary = stats.Summarize(snap.History)
	return snap
}

// capped ordena uma cópia do histórico e mantém os historySize mais recentes
func (s *Selector) capped(history []models.Reading) []models.Reading {
	out := append([]models.Reading{}, history...)
	sort.SliceStable(out, func(i, j int) bool { return out[j].Newer(out[i]) })
	if len(out) > s.historySize {
		out = out[len(out)-s.historySize:]
	}
	return out
}

// stale indica se history termina antes da janela local atual. Duas
// gravações concorrentes podem publicar fora de ordem e a lista mais antiga
// não pode recuar a janela.
func (s *Selector) stale(history []models.Reading) bool {
	n := len(s.local.history)
	if n == 0 {
		return false
	}
	if len(history) == 0 {
		return true
	}
	newest := history[0]
	for _, r := range history[1:] {
		if r.Newer(newest) {
			newest = r
		}
	}
	return s.local.history[n-1].Newer(newest)
}

// insert adiciona r em ordem, ignorando IDs repetidos
func (s *Selector) insert(history []models.Reading, r models.Reading) []models.Reading {
	for _, h := range history {
		if r.ID != 0 && h.ID == r.ID {
			return history
		}
	}
	return s.capped(append(history, r))
}

// Subscribe registra um assinante com buffer buf. O último snapshot, se
// houver, é entregue imediatamente. A função retornada cancela a assinatura.
func (s *Selector) Subscribe(buf int) (<-chan Snapshot, func()) {
	if buf <= 0 {
		buf = 1
	}
	ch := make(chan Snapshot, buf)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = ch
	if s.published {
		ch <- s.snapshot
	}

	return ch, func() {
		s.mutex.Lock()
		defer s.mutex.Unlock()
		if sub, ok := s.subscribers[id]; ok {
			close(sub)
			delete(s.subscribers, id)
		}
	}
}

// notify entrega o snapshot sem bloquear; um assinante lento perde o
// snapshot mais antigo do seu buffer
func (s *Selector) notify(snap Snapshot) {
	for _, ch := range s.subscribers {
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// Snapshot retorna o estado atual
func (s *Selector) Snapshot() Snapshot {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	snap := s.snapshot
	snap.History = append([]models.Reading{}, s.snapshot.History...)
	return snap
}

// Current retorna a leitura atual da fonte com autoridade
func (s *Selector) Current() *models.Reading {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return copyReading(s.snapshot.Current)
}

// History retorna o histórico da fonte com autoridade
func (s *Selector) History() []models.Reading {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]models.Reading{}, s.snapshot.History...)
}

func copyReading(r *models.Reading) *models.Reading {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

func sameReading(a, b *models.Reading) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID && a.Value == b.Value && a.Timestamp.Equal(b.Timestamp)
}

// sameSnapshot compara tudo menos UpdatedAt
func sameSnapshot(a, b Snapshot) bool {
	if a.State != b.State || a.HistoryOrigin != b.HistoryOrigin || a.ExternalConnected != b.ExternalConnected {
		return false
	}
	if !sameReading(a.Current, b.Current) || len(a.History) != len(b.History) {
		return false
	}
	for i := range a.History {
		if !sameReading(&a.History[i], &b.History[i]) {
			return false
		}
	}
	return true
}
