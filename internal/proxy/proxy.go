package proxy

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"ctrlscript/internal/errors"
	"ctrlscript/internal/expr"
	"ctrlscript/internal/module"
	"ctrlscript/internal/value"
)

// Proxy forwards constructor, method-call, and property-write lines to
// a remote peer over its expander's byte channel (§4.8), grounded on
// main/modules/proxy.{h,cpp}. Property reads are not proxied
// synchronously; they are served from a local cache populated by
// ApplyInboundValue whenever the remote side broadcasts.
type Proxy struct {
	module.Base
	channel       module.LineChannel
	correlationID string
}

// NewProxy constructs a proxy forwarding to expanderMod, which must be
// of kind expander. moduleType is the remote constructor's type name
// (e.g. "Output"); args are the already-evaluated constructor
// arguments. The constructor line is emitted immediately, matching the
// original's eager forward-on-construction behavior.
func NewProxy(name string, expanderMod module.Module, moduleType string, args []value.Value) (*Proxy, error) {
	if expanderMod.Kind() != module.KindExpander {
		return nil, errors.NewTypeMismatch("expander prefix must name a module of kind expander, got %q", expanderMod.Kind())
	}
	exp, ok := expanderMod.(*module.Expander)
	if !ok {
		return nil, errors.NewDeviceError("expander module %q has no accessible line channel", expanderMod.Name())
	}
	p := &Proxy{
		Base:          module.NewBase(name, module.KindProxy),
		channel:       exp.Channel(),
		correlationID: uuid.NewString(),
	}
	p.Bind(p)
	line := fmt.Sprintf("%s = %s(%s)", name, moduleType, formatArgs(args))
	if err := p.channel.WriteLine(line); err != nil {
		return nil, err
	}
	return p, nil
}

// CorrelationID identifies this proxy's constructor line among others
// sent to the same expander, for diagnostics — repeated proxy
// constructions against one expander are otherwise indistinguishable
// in a log of raw wire lines.
func (p *Proxy) CorrelationID() string { return p.correlationID }

func formatArgs(args []value.Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.Format()
	}
	return strings.Join(parts, ", ")
}

// Call forwards every method invocation as a wire line. The three
// local bookkeeping built-ins (mute/unmute/broadcast) additionally
// update this proxy's own output flags, so its Step can still honor
// them for the broadcast-cache echo; "shadow" is rejected the same way
// Base rejects it, since a proxy has no meaningful local shadow list
// separate from its remote peer's.
func (p *Proxy) Call(method string, args []value.Value) error {
	switch method {
	case "mute", "unmute", "broadcast":
		if err := p.Base.Call(method, args); err != nil {
			return err
		}
	case "shadow":
		return p.Base.Call(method, args)
	}
	line := fmt.Sprintf("%s.%s(%s)", p.Name(), method, formatArgs(args))
	return p.channel.WriteLine(line)
}

// WriteProperty creates the property on first mention (kind taken from
// the expression), assigns it locally, then forwards the assignment
// line (§4.8).
func (p *Proxy) WriteProperty(name string, e expr.Node) error {
	if _, err := p.GetProperty(name); err != nil {
		p.DefineProperty(value.NewVariable(name, e.ResultKind()))
	}
	if err := p.Base.WriteProperty(name, e); err != nil {
		return err
	}
	v, _ := p.GetProperty(name)
	line := fmt.Sprintf("%s.%s=%s", p.Name(), name, v.Format())
	return p.channel.WriteLine(line)
}

// Step emits the default output/broadcast lines local callers asked
// for via mute/unmute/broadcast; the proxy has no hardware of its own
// to poll.
func (p *Proxy) Step(tick uint64) []string {
	return p.StepOutput("")
}

// ApplyInboundValue routes one `<prop>=<value>` pair from an inbound
// `!!<module>.<prop>=<value>;…` broadcast line (§4.8, §9) into this
// proxy's property cache. The property's kind is inferred from raw on
// first mention and never changes afterward — later calls coerce
// through the existing kind, per the documented open-question
// resolution.
func (p *Proxy) ApplyInboundValue(propName string, raw string) error {
	parsed := value.ParseLiteral(raw)
	v, err := p.GetProperty(propName)
	if err != nil {
		p.DefineProperty(value.NewVariable(propName, parsed.Kind))
		v, _ = p.GetProperty(propName)
	}
	return v.Set(parsed)
}
