package feed

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/dd0wney/cluso-fraudgraph/pkg/graph"
)

var validate = validator.New()

// flexID accepts a JSON string or number and keeps its textual form.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "null":
		*f = ""
	case strings.HasPrefix(s, `"`):
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(str))
	default:
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return fmt.Errorf("identity must be a string or number, got %s", s)
		}
		*f = flexID(s)
	}
	return nil
}

type rawNode struct {
	ID       flexID   `json:"id" validate:"required_without=TxID"`
	TxID     flexID   `json:"tx_id"`
	Category string   `json:"category"`
	Risk     *float64 `json:"risk"`
	Amount   *float64 `json:"amount"`
}

// linkEnd accepts a numeric index or a numeric string. Anything else
// decodes to an unresolved endpoint.
type linkEnd struct {
	index *float64
}

func (e *linkEnd) UnmarshalJSON(b []byte) error {
	e.index = nil
	s := strings.TrimSpace(string(b))
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return nil
		}
		s = strings.TrimSpace(str)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		e.index = &f
	}
	return nil
}

type rawLink struct {
	Source linkEnd `json:"source"`
	Target linkEnd `json:"target"`
}

type rawPayload struct {
	Nodes []rawNode         `json:"nodes" validate:"required,dive"`
	Links []json.RawMessage `json:"links"`
}

// Decode turns a feed payload into a normalized snapshot: identities
// resolved, risk in [0,1], categories defaulted, connection counts derived.
// Dangling or malformed links and later nodes repeating an identity are
// dropped and counted. Links naming a dropped duplicate point at the first
// node with that identity.
func Decode(body []byte, retrievedAt time.Time) (*graph.Snapshot, error) {
	var p rawPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, &ParseError{Reason: "invalid JSON", Err: err}
	}
	if err := validate.Struct(&p); err != nil {
		return nil, &ParseError{Reason: describeValidation(err)}
	}

	nodes := make([]graph.Node, 0, len(p.Nodes))
	// position maps a payload node index to its index in nodes.
	position := make([]int, len(p.Nodes))
	seen := make(map[string]int, len(p.Nodes))
	for i, rn := range p.Nodes {
		id := string(rn.ID)
		if id == "" {
			id = string(rn.TxID)
		}
		if first, dup := seen[id]; dup {
			position[i] = first
			continue
		}
		seen[id] = len(nodes)
		position[i] = len(nodes)

		risk := 0.0
		if rn.Risk != nil {
			risk = *rn.Risk
		}
		nodes = append(nodes, graph.Node{
			ID:       id,
			TxID:     string(rn.TxID),
			Category: graph.NormalizeCategory(strings.TrimSpace(rn.Category)),
			Risk:     graph.NormalizeRisk(risk),
			Amount:   rn.Amount,
		})
	}

	raw := make([]graph.RawLink, len(p.Links))
	for i, msg := range p.Links {
		var rl rawLink
		if err := json.Unmarshal(msg, &rl); err != nil {
			continue
		}
		raw[i] = graph.RawLink{
			Source: remapIndex(rl.Source.index, position),
			Target: remapIndex(rl.Target.index, position),
		}
	}
	links, dropped := graph.ResolveLinks(raw, len(nodes))
	graph.CountConnections(nodes, links)

	return &graph.Snapshot{
		Nodes:        nodes,
		Links:        links,
		RetrievedAt:  retrievedAt,
		DroppedLinks: dropped,
		DroppedNodes: len(p.Nodes) - len(nodes),
	}, nil
}

// remapIndex translates a payload node index through position. Values that
// are not a valid payload index pass through for ResolveLinks to reject.
func remapIndex(v *float64, position []int) *float64 {
	if v == nil {
		return nil
	}
	f := *v
	if f != math.Trunc(f) || f < 0 || f >= float64(len(position)) {
		return v
	}
	mapped := float64(position[int(f)])
	return &mapped
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", strings.ToLower(fe.Field()))
	case "required_without":
		return fmt.Sprintf("%s: node has neither id nor tx_id", fe.Namespace())
	default:
		return fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag())
	}
}
