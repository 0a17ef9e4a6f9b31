package api

import (
	"net/http"

	"github.com/cyncmesh/cync-core/internal/topology"
)

// topologyHome is the diagnostics API's JSON shape for one Home, its
// devices, and its rooms.
type topologyHome struct {
	ID                   string           `json:"id"`
	Name                 string           `json:"name"`
	ControllerDeviceIDs  []string         `json:"controller_device_ids"`
	ReachableControllers []uint32         `json:"reachable_controllers"`
	Devices              []topologyDevice `json:"devices"`
	Rooms                []topologyRoom   `json:"rooms"`
}

type topologyDevice struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	MeshID   uint16            `json:"mesh_id"`
	SwitchID uint32            `json:"switch_id,omitempty"`
	RoomID   string            `json:"room_id,omitempty"`
	State    topology.Snapshot `json:"state"`
}

type topologyRoom struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	IsSubgroup      bool              `json:"is_subgroup"`
	ParentID        string            `json:"parent_id,omitempty"`
	MemberDeviceIDs []string          `json:"member_device_ids"`
	State           topology.Snapshot `json:"state"`
}

// handleTopology dumps the Client's entire Topology: every Home's
// devices and rooms with their current state.
func (s *Server) handleTopology(w http.ResponseWriter, _ *http.Request) {
	topo := s.client.Topology()
	if topo == nil {
		writeJSON(w, http.StatusOK, map[string]any{"homes": []topologyHome{}})
		return
	}

	homes := make([]topologyHome, 0)
	for _, h := range topo.Homes() {
		out := topologyHome{
			ID:                   h.ID,
			Name:                 h.Name,
			ControllerDeviceIDs:  h.ControllerDeviceIDs,
			ReachableControllers: h.ReachableControllers,
			Devices:              make([]topologyDevice, 0),
			Rooms:                make([]topologyRoom, 0),
		}
		for _, d := range topo.Devices(h.ID) {
			out.Devices = append(out.Devices, topologyDevice{
				ID:       d.ID,
				Name:     d.Name,
				MeshID:   d.MeshID,
				SwitchID: d.SwitchID,
				RoomID:   d.RoomID,
				State:    d.State.Snapshot(d.ID),
			})
		}
		for _, r := range topo.Rooms(h.ID) {
			out.Rooms = append(out.Rooms, topologyRoom{
				ID:              r.ID,
				Name:            r.Name,
				IsSubgroup:      r.IsSubgroup,
				ParentID:        r.ParentID,
				MemberDeviceIDs: r.MemberDeviceIDs,
				State:           r.State.Snapshot(r.ID),
			})
		}
		homes = append(homes, out)
	}

	writeJSON(w, http.StatusOK, map[string]any{"homes": homes})
}
