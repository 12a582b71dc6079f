package cluster

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"

	"github.com/pvebulk/pvebulk/pkg/engine"
)

// Paths inside the cluster filesystem.
const (
	DefaultRoot = "/etc/pve"

	membersFile = ".members"
	vmlistFile  = ".vmlist"
	nodesDir    = "nodes"
)

// Node is one cluster member.
type Node struct {
	Name    string `json:"name"`
	ID      int    `json:"id"`
	Address string `json:"address"`
	Online  bool   `json:"online"`
	Local   bool   `json:"local"`
}

// Membership is the decoded .members file.
type Membership struct {
	// LocalName is the name of the node whose store was read.
	LocalName string

	// ClusterName is empty on a standalone host.
	ClusterName string

	Quorate bool

	// Nodes is sorted by name.
	Nodes []Node
}

// Clustered reports whether the store belongs to a cluster.
func (m *Membership) Clustered() bool {
	return m.ClusterName != ""
}

// Node returns the member with the given name.
func (m *Membership) Node(name string) (Node, bool) {
	for _, n := range m.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return Node{}, false
}

type membersDoc struct {
	NodeName string `json:"nodename"`
	Cluster  *struct {
		Name    string `json:"name"`
		Quorate int    `json:"quorate"`
	} `json:"cluster"`
	NodeList map[string]struct {
		ID     int    `json:"id"`
		Online int    `json:"online"`
		IP     string `json:"ip"`
	} `json:"nodelist"`
}

// readMembership decodes .members from fsys.
func readMembership(fsys fs.FS) (*Membership, error) {
	data, err := fs.ReadFile(fsys, membersFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", membersFile, err)
	}

	var doc membersDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", membersFile, err)
	}

	m := &Membership{LocalName: doc.NodeName}
	if doc.Cluster != nil {
		m.ClusterName = doc.Cluster.Name
		m.Quorate = doc.Cluster.Quorate != 0
	}
	for name, n := range doc.NodeList {
		m.Nodes = append(m.Nodes, Node{
			Name:    name,
			ID:      n.ID,
			Address: n.IP,
			Online:  n.Online != 0,
		})
	}
	sort.Slice(m.Nodes, func(i, j int) bool { return m.Nodes[i].Name < m.Nodes[j].Name })

	return m, nil
}

// inventoryEntry is where one guest is registered.
type inventoryEntry struct {
	Node string
	Kind engine.EntityKind
}

type vmlistDoc struct {
	IDs map[string]struct {
		Node string `json:"node"`
		Type string `json:"type"`
	} `json:"ids"`
}

// lookupGuest finds id in .vmlist, falling back to a scan of the per-node
// config directories when .vmlist is absent. ok is false for an unknown id.
func lookupGuest(fsys fs.FS, nodes []string, id int) (inventoryEntry, bool, error) {
	data, err := fs.ReadFile(fsys, vmlistFile)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return scanGuestConfigs(fsys, nodes, id)
	case err != nil:
		return inventoryEntry{}, false, fmt.Errorf("failed to read %s: %w", vmlistFile, err)
	}

	var doc vmlistDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return inventoryEntry{}, false, fmt.Errorf("failed to parse %s: %w", vmlistFile, err)
	}

	entry, ok := doc.IDs[strconv.Itoa(id)]
	if !ok {
		return inventoryEntry{}, false, nil
	}
	return inventoryEntry{Node: entry.Node, Kind: engine.EntityKind(entry.Type)}, true, nil
}

var guestConfigDirs = []struct {
	dir  string
	kind engine.EntityKind
}{
	{"qemu-server", engine.KindVM},
	{"lxc", engine.KindContainer},
}

func scanGuestConfigs(fsys fs.FS, nodes []string, id int) (inventoryEntry, bool, error) {
	if len(nodes) == 0 {
		entries, err := fs.ReadDir(fsys, nodesDir)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return inventoryEntry{}, false, fmt.Errorf("failed to list %s: %w", nodesDir, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				nodes = append(nodes, e.Name())
			}
		}
	}

	conf := strconv.Itoa(id) + ".conf"
	for _, node := range nodes {
		for _, d := range guestConfigDirs {
			_, err := fs.Stat(fsys, path.Join(nodesDir, node, d.dir, conf))
			switch {
			case err == nil:
				return inventoryEntry{Node: node, Kind: d.kind}, true, nil
			case !errors.Is(err, fs.ErrNotExist):
				return inventoryEntry{}, false, fmt.Errorf("failed to stat guest config: %w", err)
			}
		}
	}
	return inventoryEntry{}, false, nil
}
