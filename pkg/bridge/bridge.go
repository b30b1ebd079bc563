package bridge

import (
	"log"
	"sync"
	"time"

	"chromebridge/pkg/api"
	"chromebridge/pkg/monitor"
)

// Bridge 負責在 controller 與 browser extension 之間路由訊息
//
// 路由只依賴訊息內容, 角色 (Role) 純粹是記帳用:
//   - hello 安裝 extension slot
//   - request 依 id 記錄來源後轉發給 extension
//   - reply 依 id 找回來源, 與送出者的角色無關
//
// 單一粗粒度鎖保護所有狀態, 實際的網路寫入一律在鎖外執行
type Bridge struct {
	mu        sync.Mutex
	conns     map[api.Conn]api.Role // 所有存活連線與其角色
	extension api.Conn              // 目前的 extension slot, 可能為 nil
	pending   map[string]api.Conn   // request id -> 來源連線
	mon       monitor.Monitor       // 監控器, 可為 nil
}

// New 建立一個新的 Bridge
func New(mon monitor.Monitor) *Bridge {
	return &Bridge{
		conns:   make(map[api.Conn]api.Role),
		pending: make(map[string]api.Conn),
		mon:     mon,
	}
}

// ExtensionConnected 回報目前是否有 extension 在線
func (b *Bridge) ExtensionConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.extension != nil
}

// HandleConnection 接手一條連線: 註冊、讀取迴圈、斷線清理
// 清理保證對每條連線只執行一次 (讀取迴圈結束時)
func (b *Bridge) HandleConnection(conn api.Conn) {
	b.mu.Lock()
	b.conns[conn] = api.RoleUnclassified
	b.mu.Unlock()

	log.Printf("[Bridge] <- Connected: %s", conn.ID())
	b.broadcast(monitor.KindConnect, conn.ID(), api.RoleUnclassified.String(), "")

	defer func() {
		b.reap(conn)
		conn.Close()
	}()

	for {
		raw, err := conn.ReadText()
		if err != nil {
			return
		}
		b.route(conn, raw)
	}
}

// route 對單一訊息做一次解碼分類, 再依種類處理
func (b *Bridge) route(conn api.Conn, raw []byte) {
	frame := api.DecodeFrame(raw)

	switch frame.Kind {
	case api.FrameHello:
		b.handleHello(conn)

	case api.FrameEvent:
		// 被動事件 (tab 更新等) 目前沒有訂閱者, 直接忽略
		log.Printf("[Bridge] <- Event %q from %s (ignored)", frame.Event, conn.ID())

	case api.FrameRequest:
		b.handleRequest(conn, frame)

	case api.FrameReply:
		b.handleReply(conn, frame)

	case api.FrameMalformed:
		// 無法理解的訊息不能拆掉連線, 記錄後忽略
		log.Printf("[Bridge] <- Malformed frame from %s (%d bytes, ignored)", conn.ID(), len(raw))
	}
}

// handleHello 安裝 extension slot
// 後到的 hello 直接取代前一個 slot, 不另行通知舊的 extension
func (b *Bridge) handleHello(conn api.Conn) {
	b.mu.Lock()
	replaced := b.extension != nil && b.extension != conn
	b.extension = conn
	b.conns[conn] = api.RoleExtension
	b.mu.Unlock()

	if replaced {
		log.Printf("[Bridge] <- Hello from %s (extension slot replaced)", conn.ID())
	} else {
		log.Printf("[Bridge] <- Hello from %s (extension registered)", conn.ID())
	}
	b.broadcast(monitor.KindClassify, conn.ID(), api.RoleExtension.String(), "extension slot installed")
}

// handleRequest 記錄 pending 後把原始訊息轉發給 extension
// 沒有 extension 時直接回覆合成錯誤, 不留 pending
func (b *Bridge) handleRequest(conn api.Conn, frame api.Frame) {
	b.mu.Lock()
	promoted := false
	if b.conns[conn] == api.RoleUnclassified {
		b.conns[conn] = api.RoleController
		promoted = true
	}
	role := b.conns[conn]
	ext := b.extension
	if ext != nil {
		// 同一個 id 重複使用時, 新的來源直接覆蓋舊的
		b.pending[frame.ID] = conn
	}
	b.mu.Unlock()

	if promoted {
		b.broadcast(monitor.KindClassify, conn.ID(), role.String(), "first request")
	}

	if ext == nil {
		log.Printf("[Bridge] -> Error to %s: no extension for tool %q (id=%s)", conn.ID(), frame.Tool, frame.ID)
		b.broadcast(monitor.KindSynth, conn.ID(), role.String(), "tool "+frame.Tool+" id="+frame.ID)
		b.send(conn, api.NotConnectedReply(frame.ID))
		return
	}

	log.Printf("[Bridge] -> Forward tool %q (id=%s) from %s to extension %s", frame.Tool, frame.ID, conn.ID(), ext.ID())
	b.broadcast(monitor.KindRequest, conn.ID(), role.String(), "tool "+frame.Tool+" id="+frame.ID)
	b.send(ext, frame.Raw)
}

// handleReply 依 id 找回來源連線並轉發原始訊息
// 找不到對應 pending 的 reply 安靜丟棄
func (b *Bridge) handleReply(conn api.Conn, frame api.Frame) {
	b.mu.Lock()
	role := b.conns[conn]
	origin, ok := b.pending[frame.ID]
	if ok {
		delete(b.pending, frame.ID)
	}
	b.mu.Unlock()

	if !ok {
		log.Printf("[Bridge] <- Reply with unknown id=%s from %s (dropped)", frame.ID, conn.ID())
		b.broadcast(monitor.KindDrop, conn.ID(), role.String(), "unknown id="+frame.ID)
		return
	}

	log.Printf("[Bridge] -> Reply id=%s to %s (%d bytes)", frame.ID, origin.ID(), len(frame.Raw))
	b.broadcast(monitor.KindReply, conn.ID(), role.String(), "id="+frame.ID)
	b.send(origin, frame.Raw)
}

// reap 清掉一條連線留下的所有狀態: 註冊表、extension slot、pending
func (b *Bridge) reap(conn api.Conn) {
	b.mu.Lock()
	role := b.conns[conn]
	delete(b.conns, conn)
	if b.extension == conn {
		b.extension = nil
	}
	for id, origin := range b.pending {
		if origin == conn {
			delete(b.pending, id)
		}
	}
	b.mu.Unlock()

	log.Printf("[Bridge] <- Disconnected: %s (%s)", conn.ID(), role)
	b.broadcast(monitor.KindDisconnect, conn.ID(), role.String(), "")
}

// send 在鎖外執行實際寫入, 寫入失敗只記 log 不往上傳
// 失敗方的讀取迴圈很快會發現斷線並觸發 reap
func (b *Bridge) send(conn api.Conn, data []byte) {
	if err := conn.WriteText(data); err != nil {
		log.Printf("[Bridge] Send to %s failed: %v", conn.ID(), err)
	}
}

// broadcast 廣播到監控器
func (b *Bridge) broadcast(kind, connID, role, detail string) {
	if b.mon != nil {
		b.mon.OnMessage(monitor.Message{
			Timestamp: time.Now(),
			Kind:      kind,
			ConnID:    connID,
			Role:      role,
			Detail:    detail,
		})
	}
}
