package scene

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nodeforge/forge/registry"
)

// AutoWrapPrefix prefixes every node id synthesized by the auto-wrap step.
const AutoWrapPrefix = "sys.auto.fullscreen.pass.edge_"

// Synthesized ids for the output-contract step.
const (
	AutoCompositeID       = "sys.auto.composite"
	AutoCompositeTargetID = "sys.auto.composite.target"
)

// Layer is one ordered entry of a composite: a pass output drawn into the
// composite's target. Index 0 is the composite's static pass input; dynamic
// inputs follow in their declared order, not connection insertion order.
type Layer struct {
	Index      int
	Port       string
	Source     string
	SourcePort string
	Blend      BlendMode
}

// Prepared is a validated, defaulted, tree-shaken, acyclic scene with a
// single reachable render target and adjacency indices for every consumer
// downstream of preparation.
type Prepared struct {
	Scene *Scene
	Reg   *registry.Registry

	// Params maps node id to effective parameters (defaults overlaid
	// with node params).
	Params map[string]map[string]any

	// Target is the id of the single reachable render target.
	Target string

	// Order is a topological order over all retained nodes.
	Order []string

	// Layers maps each composite node id to its ordered layer list.
	Layers map[string][]Layer

	nodes    map[string]*Node
	incoming map[string]map[string]*Connection
	outgoing map[string][]*Connection
}

// NodeByID returns the retained node with the given id, or nil.
func (p *Prepared) NodeByID(id string) *Node { return p.nodes[id] }

// CategoryOf returns the registry category of the node with the given id.
func (p *Prepared) CategoryOf(id string) registry.Category {
	n := p.nodes[id]
	if n == nil {
		return ""
	}
	def, ok := p.Reg.DefinitionOf(n.Type)
	if !ok {
		return ""
	}
	return def.Category
}

// Incoming returns the connection feeding the given input port, or nil.
func (p *Prepared) Incoming(nodeID, portID string) *Connection {
	return p.incoming[nodeID][portID]
}

// IncomingPorts returns the connected input port ids of a node, sorted.
func (p *Prepared) IncomingPorts(nodeID string) []string {
	ports := make([]string, 0, len(p.incoming[nodeID]))
	for port := range p.incoming[nodeID] {
		ports = append(ports, port)
	}
	sort.Strings(ports)
	return ports
}

// Outgoing returns the connections leaving a node, sorted by connection id.
func (p *Prepared) Outgoing(nodeID string) []*Connection {
	return p.outgoing[nodeID]
}

// PortType resolves the type of a port on a retained node, consulting the
// registry definition first and the node's dynamic port declarations when
// the registry has no entry for it.
func (p *Prepared) PortType(nodeID, portID string, output bool) (registry.PortType, bool) {
	n := p.nodes[nodeID]
	if n == nil {
		return "", false
	}
	return portTypeOf(p.Reg, n, portID, output)
}

func portTypeOf(reg *registry.Registry, n *Node, portID string, output bool) (registry.PortType, bool) {
	if def, ok := reg.DefinitionOf(n.Type); ok {
		if output {
			if port, ok := def.Output(portID); ok {
				return port.Type, true
			}
		} else {
			if port, ok := def.Input(portID); ok {
				return port.Type, true
			}
		}
	}
	if output {
		if d, ok := n.DynamicOutput(portID); ok && registry.ValidPortType(registry.PortType(d.Type)) {
			return registry.PortType(d.Type), true
		}
	} else {
		if d, ok := n.DynamicInput(portID); ok && registry.ValidPortType(registry.PortType(d.Type)) {
			return registry.PortType(d.Type), true
		}
	}
	return "", false
}

// Prepare runs the full preparation pipeline over a parsed scene:
// structural validation, default merge, render-target location, upstream
// tree-shaking, auto-wrapping of raw shader values feeding pass slots,
// port compatibility checking, output-contract enforcement, topological
// ordering, and composite layer ordering.
//
// The input scene is not mutated; synthesized nodes and rewired
// connections live only in the returned Prepared.
func Prepare(s *Scene, reg *registry.Registry) (*Prepared, error) {
	if s == nil {
		return nil, &Error{Code: CodeSchema, Msg: "nil scene"}
	}
	if reg == nil {
		return nil, fmt.Errorf("scene: nil registry")
	}

	p := &Prepared{
		Reg:    reg,
		Params: make(map[string]map[string]any),
		Layers: make(map[string][]Layer),
	}

	nodes, conns, err := cloneGraph(s, reg)
	if err != nil {
		return nil, err
	}

	// Default-merge before anything consults parameters.
	for _, n := range nodes {
		p.Params[n.ID] = MergeParams(reg.Defaults(n.Type), n.Params)
	}

	target, err := locateTarget(s, reg, nodes)
	if err != nil {
		return nil, err
	}
	p.Target = target

	nodes, conns = shakeUpstream(nodes, conns, target)

	nodes, conns, err = autoWrap(reg, nodes, conns, p.Params)
	if err != nil {
		return nil, err
	}

	if err := checkPortCompat(reg, nodes, conns); err != nil {
		return nil, err
	}

	nodes, conns, err = enforceOutputContract(reg, nodes, conns, p.Params, target)
	if err != nil {
		return nil, err
	}

	if err := checkRequiredParams(reg, nodes, conns, p.Params); err != nil {
		return nil, err
	}

	p.nodes = nodes
	p.buildIndices(conns)

	order, err := topoSort(nodes, conns)
	if err != nil {
		return nil, err
	}
	p.Order = order

	if err := p.orderCompositeLayers(); err != nil {
		return nil, err
	}

	// Rebuild a normalized Scene so Prepared round-trips through the
	// wire format.
	p.Scene = rebuildScene(s, nodes, conns, p.Order)
	return p, nil
}

// cloneGraph copies nodes and connections into id-keyed maps, canonicalizes
// type tags, and performs structural validation.
func cloneGraph(s *Scene, reg *registry.Registry) (map[string]*Node, map[string]*Connection, error) {
	nodes := make(map[string]*Node, len(s.Nodes))
	for _, n := range s.Nodes {
		if _, dup := nodes[n.ID]; dup {
			return nil, nil, &Error{Code: CodeDuplicateID, Node: n.ID, Msg: "duplicate node id"}
		}
		def, known := reg.DefinitionOf(n.Type)
		if !known {
			return nil, nil, &Error{Code: CodeUnknownNodeType, Node: n.ID, Msg: fmt.Sprintf("unknown node type %q", n.Type)}
		}
		clone := *n
		clone.Type = def.Type
		clone.Params = MergeParams(nil, n.Params)
		nodes[n.ID] = &clone
	}

	conns := make(map[string]*Connection, len(s.Connections))
	sink := make(map[Endpoint]string, len(s.Connections))
	for _, c := range s.Connections {
		if _, dup := conns[c.ID]; dup {
			return nil, nil, &Error{Code: CodeDuplicateID, Conn: c.ID, Msg: "duplicate connection id"}
		}
		from, to := nodes[c.From.NodeID], nodes[c.To.NodeID]
		if from == nil {
			return nil, nil, &Error{Code: CodeDanglingEndpoint, Conn: c.ID, Msg: fmt.Sprintf("source node %q does not exist", c.From.NodeID)}
		}
		if to == nil {
			return nil, nil, &Error{Code: CodeDanglingEndpoint, Conn: c.ID, Msg: fmt.Sprintf("target node %q does not exist", c.To.NodeID)}
		}
		if _, ok := portTypeOf(reg, from, c.From.PortID, true); !ok {
			return nil, nil, &Error{Code: CodeDanglingEndpoint, Conn: c.ID, Node: from.ID,
				Msg: fmt.Sprintf("no output port %q on %s node %q", c.From.PortID, from.Type, from.ID)}
		}
		if _, ok := portTypeOf(reg, to, c.To.PortID, false); !ok {
			return nil, nil, &Error{Code: CodeDanglingEndpoint, Conn: c.ID, Node: to.ID,
				Msg: fmt.Sprintf("no input port %q on %s node %q", c.To.PortID, to.Type, to.ID)}
		}
		if prev, taken := sink[c.To]; taken && !multiInput(reg, to, c.To.PortID) {
			return nil, nil, &Error{Code: CodeSchema, Conn: c.ID,
				Msg: fmt.Sprintf("input %s already fed by connection %q", c.To, prev)}
		}
		sink[c.To] = c.ID
		clone := *c
		conns[c.ID] = &clone
	}
	return nodes, conns, nil
}

func multiInput(reg *registry.Registry, n *Node, portID string) bool {
	def, ok := reg.DefinitionOf(n.Type)
	if !ok {
		return false
	}
	port, ok := def.Input(portID)
	return ok && port.Multi
}

// locateTarget finds the single render target. With several candidates the
// scene's outputs map must name one under the "composite" key.
func locateTarget(s *Scene, reg *registry.Registry, nodes map[string]*Node) (string, error) {
	var targets []string
	for _, id := range sortedNodeIDs(nodes) {
		if def, ok := reg.DefinitionOf(nodes[id].Type); ok && def.Category == registry.CategoryRenderTarget {
			targets = append(targets, id)
		}
	}
	switch {
	case len(targets) == 0:
		return "", &Error{Code: CodeNoRenderTarget, Msg: "scene has no Screen or File node"}
	case len(targets) == 1:
		return targets[0], nil
	}
	if named, ok := s.Outputs["composite"]; ok {
		for _, id := range targets {
			if id == named {
				return id, nil
			}
		}
	}
	return "", &Error{Code: CodeAmbiguousTarget,
		Msg: fmt.Sprintf("%d render targets and outputs.composite does not select one: %s", len(targets), strings.Join(targets, ", "))}
}

// shakeUpstream keeps only nodes that can reach the target by following
// connections forward, discovered by reverse BFS over incoming edges.
func shakeUpstream(nodes map[string]*Node, conns map[string]*Connection, target string) (map[string]*Node, map[string]*Connection) {
	incoming := make(map[string][]*Connection)
	for _, c := range conns {
		incoming[c.To.NodeID] = append(incoming[c.To.NodeID], c)
	}

	retained := map[string]bool{target: true}
	queue := []string{target}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, c := range incoming[id] {
			if !retained[c.From.NodeID] {
				retained[c.From.NodeID] = true
				queue = append(queue, c.From.NodeID)
			}
		}
	}

	keptNodes := make(map[string]*Node, len(retained))
	for id := range retained {
		keptNodes[id] = nodes[id]
	}
	keptConns := make(map[string]*Connection)
	for id, c := range conns {
		if retained[c.To.NodeID] && retained[c.From.NodeID] {
			keptConns[id] = c
		}
	}
	return keptNodes, keptConns
}

// autoWrap bridges raw shader values feeding pass-typed inputs with a
// synthesized full-screen pass. The wrapper's material input is
// shader-typed, so running the step again finds nothing to wrap.
func autoWrap(reg *registry.Registry, nodes map[string]*Node, conns map[string]*Connection, params map[string]map[string]any) (map[string]*Node, map[string]*Connection, error) {
	for _, id := range sortedConnIDs(conns) {
		c := conns[id]
		src, _ := portTypeOf(reg, nodes[c.From.NodeID], c.From.PortID, true)
		dst, _ := portTypeOf(reg, nodes[c.To.NodeID], c.To.PortID, false)
		if !registry.NeedsFullscreenWrap(src, dst) {
			continue
		}

		wrapID := AutoWrapPrefix + c.ID
		if _, exists := nodes[wrapID]; exists {
			return nil, nil, &Error{Code: CodeDuplicateID, Node: wrapID, Msg: "synthesized id collides with scene node"}
		}
		wrap := &Node{ID: wrapID, Type: "FullscreenPass", Params: map[string]any{}}
		nodes[wrapID] = wrap
		params[wrapID] = MergeParams(reg.Defaults(wrap.Type), nil)

		delete(conns, c.ID)
		conns[c.ID+".in"] = &Connection{
			ID:   c.ID + ".in",
			From: c.From,
			To:   Endpoint{NodeID: wrapID, PortID: "material"},
		}
		conns[c.ID+".out"] = &Connection{
			ID:   c.ID + ".out",
			From: Endpoint{NodeID: wrapID, PortID: "pass"},
			To:   c.To,
		}
	}
	return nodes, conns, nil
}

// checkPortCompat verifies every remaining connection under the port
// compatibility rules.
func checkPortCompat(reg *registry.Registry, nodes map[string]*Node, conns map[string]*Connection) error {
	for _, id := range sortedConnIDs(conns) {
		c := conns[id]
		src, _ := portTypeOf(reg, nodes[c.From.NodeID], c.From.PortID, true)
		dst, _ := portTypeOf(reg, nodes[c.To.NodeID], c.To.PortID, false)
		if !registry.Compatible(src, dst) {
			return &Error{Code: CodeTypeIncompatible, Conn: c.ID,
				Msg: fmt.Sprintf("%s (%s) cannot feed %s (%s)", c.From, src, c.To, dst)}
		}
	}
	return nil
}

// enforceOutputContract guarantees target.pass ← Composite and
// Composite.target ← RenderTexture, synthesizing defaults when the graph
// routes a raw pass into the render target or leaves a composite
// targetless.
func enforceOutputContract(reg *registry.Registry, nodes map[string]*Node, conns map[string]*Connection, params map[string]map[string]any, target string) (map[string]*Node, map[string]*Connection, error) {
	tp := params[target]
	width := ParamInt(tp, "width", 1280)
	height := ParamInt(tp, "height", 720)

	addNode := func(n *Node) {
		nodes[n.ID] = n
		params[n.ID] = MergeParams(reg.Defaults(n.Type), n.Params)
	}

	var passConn *Connection
	for _, id := range sortedConnIDs(conns) {
		c := conns[id]
		if c.To.NodeID == target && c.To.PortID == "pass" {
			passConn = c
			break
		}
	}

	compositeID := ""
	switch {
	case passConn == nil:
		// Empty scene: a lone render target still gets a composite so
		// the plan clears its texture to transparent.
		addNode(&Node{ID: AutoCompositeID, Type: "Composite", Params: map[string]any{}})
		conns[AutoCompositeID+".out"] = &Connection{
			ID:   AutoCompositeID + ".out",
			From: Endpoint{NodeID: AutoCompositeID, PortID: "pass"},
			To:   Endpoint{NodeID: target, PortID: "pass"},
		}
		compositeID = AutoCompositeID

	default:
		srcNode := nodes[passConn.From.NodeID]
		def, _ := reg.DefinitionOf(srcNode.Type)
		if def.Category == registry.CategoryComposite {
			compositeID = srcNode.ID
			break
		}
		// Raw pass into the render target: interpose a composite.
		addNode(&Node{ID: AutoCompositeID, Type: "Composite", Params: map[string]any{}})
		delete(conns, passConn.ID)
		conns[AutoCompositeID+".in"] = &Connection{
			ID:   AutoCompositeID + ".in",
			From: passConn.From,
			To:   Endpoint{NodeID: AutoCompositeID, PortID: "pass"},
		}
		conns[AutoCompositeID+".out"] = &Connection{
			ID:   AutoCompositeID + ".out",
			From: Endpoint{NodeID: AutoCompositeID, PortID: "pass"},
			To:   Endpoint{NodeID: target, PortID: "pass"},
		}
		compositeID = AutoCompositeID
	}

	// The routing composite needs a RenderTexture target. A synthesized
	// one inherits the routed pass's own target size when the pass
	// declares one, so a 1024x1024 pass composites at 1024x1024.
	hasTarget := false
	for _, c := range conns {
		if c.To.NodeID == compositeID && c.To.PortID == "target" {
			hasTarget = true
			break
		}
	}
	if !hasTarget {
		if c, ok := layerZeroSource(conns, compositeID); ok {
			for _, tc := range conns {
				if tc.To.NodeID == c && tc.To.PortID == "target" {
					texP := params[tc.From.NodeID]
					width = ParamInt(texP, "width", width)
					height = ParamInt(texP, "height", height)
					break
				}
			}
		}
		addNode(&Node{ID: AutoCompositeTargetID, Type: "RenderTexture", Params: map[string]any{
			"width": width, "height": height,
		}})
		conns[AutoCompositeTargetID+".out"] = &Connection{
			ID:   AutoCompositeTargetID + ".out",
			From: Endpoint{NodeID: AutoCompositeTargetID, PortID: "texture"},
			To:   Endpoint{NodeID: compositeID, PortID: "target"},
		}
	}
	return nodes, conns, nil
}

// layerZeroSource returns the node feeding a composite's static pass
// input, if connected.
func layerZeroSource(conns map[string]*Connection, compositeID string) (string, bool) {
	for _, id := range sortedConnIDs(conns) {
		c := conns[id]
		if c.To.NodeID == compositeID && c.To.PortID == "pass" {
			return c.From.NodeID, true
		}
	}
	return "", false
}

// checkRequiredParams verifies every registry-required parameter is bound:
// by an incoming connection on a same-named port, by an inline param, or by
// a registry default (already merged).
func checkRequiredParams(reg *registry.Registry, nodes map[string]*Node, conns map[string]*Connection, params map[string]map[string]any) error {
	connected := make(map[Endpoint]bool, len(conns))
	for _, c := range conns {
		connected[c.To] = true
	}
	for _, id := range sortedNodeIDs(nodes) {
		n := nodes[id]
		def, _ := reg.DefinitionOf(n.Type)
		for _, req := range def.Required {
			if _, ok := params[id][req]; ok {
				continue
			}
			if connected[Endpoint{NodeID: id, PortID: req}] {
				continue
			}
			return &Error{Code: CodeMissingRequired, Node: id,
				Msg: fmt.Sprintf("%s node requires parameter %q", n.Type, req)}
		}
	}
	return nil
}

// topoSort runs Kahn's algorithm with a deterministic (sorted) ready set.
func topoSort(nodes map[string]*Node, conns map[string]*Connection) ([]string, error) {
	indegree := make(map[string]int, len(nodes))
	adj := make(map[string][]string)
	for id := range nodes {
		indegree[id] = 0
	}
	for _, c := range conns {
		adj[c.From.NodeID] = append(adj[c.From.NodeID], c.To.NodeID)
		indegree[c.To.NodeID]++
	}

	var ready []string
	for id, d := range indegree {
		if d == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		next := append([]string{}, adj[id]...)
		sort.Strings(next)
		for _, to := range next {
			indegree[to]--
			if indegree[to] == 0 {
				ready = insertSorted(ready, to)
			}
		}
	}

	if len(order) != len(nodes) {
		return nil, &Error{Code: CodeCycle, CycleNodes: findCycle(nodes, conns, indegree),
			Msg: "scene graph contains a cycle"}
	}
	return order, nil
}

func insertSorted(s []string, v string) []string {
	i := sort.SearchStrings(s, v)
	s = append(s, "")
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

// findCycle walks the residual graph (nodes with nonzero indegree after
// Kahn) and returns one concrete cycle for the error message.
func findCycle(nodes map[string]*Node, conns map[string]*Connection, indegree map[string]int) []string {
	residual := make(map[string]bool)
	for id, d := range indegree {
		if d > 0 {
			residual[id] = true
		}
	}
	adj := make(map[string][]string)
	for _, c := range conns {
		if residual[c.From.NodeID] && residual[c.To.NodeID] {
			adj[c.From.NodeID] = append(adj[c.From.NodeID], c.To.NodeID)
		}
	}
	for id := range adj {
		sort.Strings(adj[id])
	}

	for _, start := range sortedNodeIDs(nodes) {
		if !residual[start] {
			continue
		}
		path := []string{start}
		onPath := map[string]int{start: 0}
		for {
			cur := path[len(path)-1]
			next := adj[cur]
			if len(next) == 0 {
				break
			}
			to := next[0]
			if i, seen := onPath[to]; seen {
				return append(path[i:], to)
			}
			onPath[to] = len(path)
			path = append(path, to)
		}
	}
	return nil
}

// orderCompositeLayers computes the draw order of every composite: the
// static pass input is layer 0, then dynamic inputs in declared order.
func (p *Prepared) orderCompositeLayers() error {
	for _, id := range sortedNodeIDs(p.nodes) {
		if p.CategoryOf(id) != registry.CategoryComposite {
			continue
		}
		n := p.nodes[id]
		var layers []Layer
		if c := p.incoming[id]["pass"]; c != nil {
			layers = append(layers, Layer{
				Index: 0, Port: "pass",
				Source: c.From.NodeID, SourcePort: c.From.PortID,
				Blend: BlendNormal,
			})
		}
		for _, dyn := range n.Inputs {
			c := p.incoming[id][dyn.ID]
			if c == nil {
				continue
			}
			layers = append(layers, Layer{
				Index: len(layers), Port: dyn.ID,
				Source: c.From.NodeID, SourcePort: c.From.PortID,
				Blend: ParseBlendMode(p.Params[id]["blend_"+dyn.ID]),
			})
		}
		p.Layers[id] = layers
	}
	return nil
}

func (p *Prepared) buildIndices(conns map[string]*Connection) {
	p.incoming = make(map[string]map[string]*Connection)
	p.outgoing = make(map[string][]*Connection)
	for _, id := range sortedConnIDs(conns) {
		c := conns[id]
		if p.incoming[c.To.NodeID] == nil {
			p.incoming[c.To.NodeID] = make(map[string]*Connection)
		}
		p.incoming[c.To.NodeID][c.To.PortID] = c
		p.outgoing[c.From.NodeID] = append(p.outgoing[c.From.NodeID], c)
	}
}

// rebuildScene produces a normalized wire-format scene from the retained
// graph: nodes in topological order, connections sorted by id.
func rebuildScene(orig *Scene, nodes map[string]*Node, conns map[string]*Connection, order []string) *Scene {
	out := &Scene{
		Version:  orig.Version,
		Metadata: orig.Metadata,
		Outputs:  orig.Outputs,
	}
	for _, id := range order {
		out.Nodes = append(out.Nodes, nodes[id])
	}
	for _, id := range sortedConnIDs(conns) {
		out.Connections = append(out.Connections, conns[id])
	}
	return out
}

func sortedNodeIDs(nodes map[string]*Node) []string {
	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedConnIDs(conns map[string]*Connection) []string {
	ids := make([]string, 0, len(conns))
	for id := range conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
