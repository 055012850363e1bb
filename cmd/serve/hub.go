package serve

import (
	"sort"
	"sync"

	"github.com/ValentinKolb/csIPC/rpc/common"
	"github.com/ValentinKolb/csIPC/rpc/connection"
	"github.com/ValentinKolb/csIPC/rpc/dispatch"
	"github.com/ValentinKolb/csIPC/rpc/proto"
	"github.com/ValentinKolb/csIPC/rpc/server"
	"github.com/puzpuzpuz/xsync/v3"
)

// presenceEntry is one remote client announced by a local peer
type presenceEntry struct {
	info  proto.ClientInfo
	owner string // name of the connection that announced the client
}

// Hub implements the default service behavior shared by all server roles:
// it answers status and client list requests, keeps the presence table of
// remote clients and relays notifies between local peers for every role
// configured with RelayNotify.
type Hub struct {
	version string

	presence *xsync.MapOf[string, presenceEntry]
	// relaying maps a live connection to the RelayNotify setting of its role
	relaying *xsync.MapOf[string, bool]

	mu      sync.RWMutex
	servers []*server.Server
}

// NewHub creates a hub. version is announced to every new peer.
func NewHub(version string) *Hub {
	return &Hub{
		version:  version,
		presence: xsync.NewMapOf[string, presenceEntry](),
		relaying: xsync.NewMapOf[string, bool](),
	}
}

// Options returns the server options for a role served by the hub
func (h *Hub) Options(config common.ServerConfig, metrics *common.Metrics) server.Options {
	return server.Options{
		Router:  h.Router(config),
		Metrics: metrics,
		OnConnection: func(c *connection.Connection) {
			h.relaying.Store(c.Name(), config.RelayNotify)
			h.onConnection(c)
		},
		OnClose: func(c *connection.Connection) {
			h.onClose(c)
			h.relaying.Delete(c.Name())
		},
	}
}

// Router builds the router of one role with all hub handlers registered
func (h *Hub) Router(config common.ServerConfig) *dispatch.Router {
	var r *dispatch.Router
	if config.DispatchMode == common.DispatchPool {
		r = dispatch.NewPooledRouter(config.Name+"-dispatch", config.DispatchWorkers)
	} else {
		r = dispatch.NewRouter()
	}

	dispatch.Handle(r, h.handleConnectStatus)
	dispatch.Handle(r, h.handleClientList)
	dispatch.Handle(r, h.handleClientStatus)
	dispatch.Handle(r, h.handleDeviceName)
	r.Fallback(h.handleOther)
	return r
}

// Attach adds a server to the set of servers notifies are relayed to
func (h *Hub) Attach(s *server.Server) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.servers = append(h.servers, s)
}

// Clients returns the presence table sorted by client id
func (h *Hub) Clients() []proto.ClientInfo {
	clients := make([]proto.ClientInfo, 0, h.presence.Size())
	h.presence.Range(func(_ string, e presenceEntry) bool {
		clients = append(clients, e.info)
		return true
	})
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].ClientID.String() < clients[j].ClientID.String()
	})
	return clients
}

// Shutdown announces the end of the service to every peer of every role
func (h *Hub) Shutdown(reason uint8) {
	for _, s := range h.attached() {
		if err := s.Broadcast(&proto.ServiceShutdownNotify{Reason: reason}); err != nil {
			log.Warningf("announcing shutdown on %s failed: %v", s.Name(), err)
		}
	}
}

func (h *Hub) attached() []*server.Server {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]*server.Server(nil), h.servers...)
}

// relayFrom forwards msg to every peer except the sender, if the sender's
// role relays notifies
func (h *Hub) relayFrom(sender string, msg proto.Message) {
	if relay, _ := h.relaying.Load(sender); !relay {
		return
	}
	for _, s := range h.attached() {
		if err := s.BroadcastExcept(sender, msg); err != nil {
			log.Warningf("relaying %s on %s failed: %v", msg.Kind(), s.Name(), err)
		}
	}
}

// --------------------------------------------------------------------------
// Connection callbacks
// --------------------------------------------------------------------------

func (h *Hub) onConnection(c *connection.Connection) {
	log.Infof("peer %s connected", c.Name())
	if err := c.Send(&proto.UpdateSystemInfoNotify{IP: "127.0.0.1", ServiceVersion: h.version}); err != nil {
		log.Debugf("%s: sending system info failed: %v", c.Name(), err)
	}
}

// onClose drops every client the peer announced and reports them offline
func (h *Hub) onClose(c *connection.Connection) {
	log.Infof("peer %s disconnected", c.Name())
	h.presence.Range(func(key string, e presenceEntry) bool {
		if e.owner != c.Name() {
			return true
		}
		h.presence.Delete(key)
		h.relayFrom(c.Name(), statusNotify(e.info, proto.ClientOffline))
		return true
	})
}

func statusNotify(info proto.ClientInfo, status uint8) *proto.UpdateClientStatusNotify {
	return &proto.UpdateClientStatusNotify{
		Status:      status,
		IP:          info.IP,
		Port:        info.Port,
		ClientID:    info.ClientID,
		DisplayName: info.DisplayName,
		DeviceType:  info.DeviceType,
	}
}

// --------------------------------------------------------------------------
// Handlers
// --------------------------------------------------------------------------

func (h *Hub) handleConnectStatus(c *connection.Connection, _ *proto.ConnectStatusRequest) {
	h.reply(c, &proto.ConnectStatusResponse{Status: proto.StatusConnected})
}

func (h *Hub) handleClientList(c *connection.Connection, _ *proto.ClientListRequest) {
	h.reply(c, &proto.ClientListResponse{Clients: h.Clients()})
}

func (h *Hub) handleClientStatus(c *connection.Connection, msg *proto.UpdateClientStatusNotify) {
	key := msg.ClientID.String()
	if msg.Status == proto.ClientOnline {
		h.presence.Store(key, presenceEntry{info: msg.Info(), owner: c.Name()})
	} else {
		h.presence.Delete(key)
	}
	h.relayFrom(c.Name(), msg)
}

func (h *Hub) handleDeviceName(c *connection.Connection, msg *proto.UpdateDeviceNameRequest) {
	entry, ok := h.presence.Compute(msg.ClientID.String(), func(old presenceEntry, loaded bool) (presenceEntry, bool) {
		if !loaded {
			// delete an entry that does not exist, the map stays unchanged
			return old, true
		}
		old.info.DisplayName = msg.DisplayName
		return old, false
	})
	if !ok {
		h.reply(c, &proto.UpdateDeviceNameResponse{Status: proto.ResultFailure})
		return
	}

	h.reply(c, &proto.UpdateDeviceNameResponse{Status: proto.ResultSuccess})
	h.relayFrom(c.Name(), statusNotify(entry.info, proto.ClientOnline))
}

// handleOther relays notifies nobody handles and drops everything else
func (h *Hub) handleOther(c *connection.Connection, msg proto.Message) {
	if msg.Kind().Type == proto.TypeNotify {
		h.relayFrom(c.Name(), msg)
		return
	}
	log.Debugf("%s: no handler for %s", c.Name(), msg.Kind())
}

func (h *Hub) reply(c *connection.Connection, msg proto.Message) {
	if err := c.Send(msg); err != nil {
		log.Debugf("%s: sending %s failed: %v", c.Name(), msg.Kind(), err)
	}
}
