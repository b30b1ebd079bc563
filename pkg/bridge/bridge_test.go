package bridge

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chromebridge/pkg/api"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// fakeConn is a channel-backed api.Conn. Frames pushed into in are read by
// the bridge's read loop; frames the bridge writes back are recorded.
type fakeConn struct {
	id        string
	in        chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu         sync.Mutex
	writes     [][]byte
	failWrites bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{
		id:     id,
		in:     make(chan []byte, 32),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) ReadText() ([]byte, error) {
	select {
	case data := <-c.in:
		return data, nil
	case <-c.closed:
		return nil, io.EOF
	}
}

func (c *fakeConn) WriteText(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWrites {
		return errors.New("simulated write failure")
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	c.writes = append(c.writes, cp)
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) push(frame string) { c.in <- []byte(frame) }

func (c *fakeConn) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

func (c *fakeConn) written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.writes))
	copy(out, c.writes)
	return out
}

func pendingCount(b *Bridge) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func connCount(b *Bridge) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

func currentExtension(b *Bridge) api.Conn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.extension
}

func eventually(t *testing.T, cond func() bool, msgAndArgs ...interface{}) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond, msgAndArgs...)
}

func TestRequestReplyRoundTrip(t *testing.T) {
	b := New(nil)
	ext := newFakeConn("ext")
	ctrl := newFakeConn("ctrl")
	go b.HandleConnection(ext)
	go b.HandleConnection(ctrl)

	ext.push(`{"event":"hello"}`)
	eventually(t, b.ExtensionConnected, "hello should install the extension slot")

	reqRaw := `{"id":"r1","tool":"active_tab","args":{}}`
	ctrl.push(reqRaw)

	eventually(t, func() bool { return ext.writeCount() == 1 }, "request should be forwarded to the extension")
	assert.Equal(t, []byte(reqRaw), ext.written()[0], "forwarded request must be byte-for-byte verbatim")
	assert.Equal(t, 1, pendingCount(b))

	replyRaw := `{"id":"r1","ok":true,"result":{"url":"https://example.com","title":"Example"}}`
	ext.push(replyRaw)

	eventually(t, func() bool { return ctrl.writeCount() == 1 }, "reply should be routed back to the origin")
	assert.Equal(t, []byte(replyRaw), ctrl.written()[0], "routed reply must be byte-for-byte verbatim")
	assert.Equal(t, 0, pendingCount(b), "pending entry should be removed once the reply is routed")
}

func TestRequestWithoutExtension(t *testing.T) {
	b := New(nil)
	ctrl := newFakeConn("ctrl")
	go b.HandleConnection(ctrl)

	ctrl.push(`{"id":"lonely","tool":"navigate","args":{"url":"https://example.com"}}`)

	eventually(t, func() bool { return ctrl.writeCount() == 1 }, "origin should receive a synthesized error")

	var reply api.ReplyEnvelope
	require.NoError(t, json.Unmarshal(ctrl.written()[0], &reply))
	assert.Equal(t, "lonely", reply.ID)
	assert.False(t, reply.OK)
	assert.Equal(t, api.ErrNotConnected, reply.Error)
	assert.Equal(t, 0, pendingCount(b), "synthesized errors must not leave a pending entry")
}

func TestOriginDisconnectClearsPending(t *testing.T) {
	b := New(nil)
	ext := newFakeConn("ext")
	ctrl := newFakeConn("ctrl")
	go b.HandleConnection(ext)
	go b.HandleConnection(ctrl)

	ext.push(`{"event":"hello"}`)
	eventually(t, b.ExtensionConnected)

	ctrl.push(`{"id":"r1","tool":"console_logs","args":{}}`)
	eventually(t, func() bool { return ext.writeCount() == 1 })
	require.Equal(t, 1, pendingCount(b))

	ctrl.Close()
	eventually(t, func() bool { return pendingCount(b) == 0 }, "reaper should drop the dead origin's pending entries")
	eventually(t, func() bool { return connCount(b) == 1 })

	// The late reply now has no pending entry. Run a second round trip through
	// the same extension connection; its in-order processing guarantees the
	// stale reply was handled (and dropped) before the fresh one.
	ext.push(`{"id":"r1","ok":true,"result":[]}`)

	ctrl2 := newFakeConn("ctrl2")
	go b.HandleConnection(ctrl2)
	ctrl2.push(`{"id":"r2","tool":"active_tab","args":{}}`)
	eventually(t, func() bool { return ext.writeCount() == 2 })
	ext.push(`{"id":"r2","ok":true,"result":{}}`)
	eventually(t, func() bool { return ctrl2.writeCount() == 1 })

	assert.Equal(t, 0, ctrl.writeCount(), "nothing may be sent toward the disconnected origin")
	assert.Equal(t, 0, pendingCount(b))
}

func TestExtensionDisconnectClearsSlot(t *testing.T) {
	b := New(nil)
	ext := newFakeConn("ext")
	go b.HandleConnection(ext)

	ext.push(`{"event":"hello"}`)
	eventually(t, b.ExtensionConnected)

	ext.Close()
	eventually(t, func() bool { return !b.ExtensionConnected() }, "reaper should clear the extension slot")

	ctrl := newFakeConn("ctrl")
	go b.HandleConnection(ctrl)
	ctrl.push(`{"id":"after","tool":"screenshot","args":{}}`)

	eventually(t, func() bool { return ctrl.writeCount() == 1 })
	var reply api.ReplyEnvelope
	require.NoError(t, json.Unmarshal(ctrl.written()[0], &reply))
	assert.False(t, reply.OK)
	assert.Equal(t, api.ErrNotConnected, reply.Error)
}

func TestSecondHelloReplacesSlot(t *testing.T) {
	b := New(nil)
	ext1 := newFakeConn("ext1")
	ext2 := newFakeConn("ext2")
	go b.HandleConnection(ext1)
	go b.HandleConnection(ext2)

	ext1.push(`{"event":"hello"}`)
	eventually(t, func() bool { return currentExtension(b) == api.Conn(ext1) })

	ext2.push(`{"event":"hello"}`)
	eventually(t, func() bool { return currentExtension(b) == api.Conn(ext2) }, "later hello should take over the slot")

	ctrl := newFakeConn("ctrl")
	go b.HandleConnection(ctrl)
	ctrl.push(`{"id":"r1","tool":"active_tab","args":{}}`)

	eventually(t, func() bool { return ext2.writeCount() == 1 }, "requests should go to the new extension")
	assert.Equal(t, 0, ext1.writeCount(), "the replaced extension receives no forwards and no notification")

	// The replaced connection going away must not disturb the current slot.
	ext1.Close()
	eventually(t, func() bool { return connCount(b) == 2 })
	assert.True(t, b.ExtensionConnected())
	assert.Equal(t, api.Conn(ext2), currentExtension(b))
}

func TestConcurrentControllersKeepDistinctReplies(t *testing.T) {
	b := New(nil)
	ext := newFakeConn("ext")
	go b.HandleConnection(ext)
	ext.push(`{"event":"hello"}`)
	eventually(t, b.ExtensionConnected)

	const n = 8
	ctrls := make([]*fakeConn, n)
	for i := 0; i < n; i++ {
		ctrls[i] = newFakeConn(fmt.Sprintf("ctrl-%d", i))
		go b.HandleConnection(ctrls[i])
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctrls[i].push(fmt.Sprintf(`{"id":"req-%d","tool":"evaluate_js","args":{"expression":"%d+%d"}}`, i, i, i))
		}(i)
	}
	wg.Wait()

	eventually(t, func() bool { return ext.writeCount() == n }, "all requests should reach the extension")

	// Answer in reverse order of arrival to stress the id-based routing.
	received := ext.written()
	for i := len(received) - 1; i >= 0; i-- {
		var req api.Request
		require.NoError(t, json.Unmarshal(received[i], &req))
		ext.push(fmt.Sprintf(`{"id":"%s","ok":true,"result":"answer-%s"}`, req.ID, req.ID))
	}

	for i := 0; i < n; i++ {
		i := i
		eventually(t, func() bool { return ctrls[i].writeCount() == 1 })
		var reply struct {
			ID     string `json:"id"`
			OK     bool   `json:"ok"`
			Result string `json:"result"`
		}
		require.NoError(t, json.Unmarshal(ctrls[i].written()[0], &reply))
		assert.Equal(t, fmt.Sprintf("req-%d", i), reply.ID, "replies must never cross controllers")
		assert.Equal(t, fmt.Sprintf("answer-req-%d", i), reply.Result)
	}
	assert.Equal(t, 0, pendingCount(b))
}

func TestUnknownReplyDropped(t *testing.T) {
	b := New(nil)
	ext := newFakeConn("ext")
	ctrl := newFakeConn("ctrl")
	go b.HandleConnection(ext)
	go b.HandleConnection(ctrl)

	ext.push(`{"event":"hello"}`)
	eventually(t, b.ExtensionConnected)

	// No such pending id. The bridge must swallow it without closing the conn.
	ext.push(`{"id":"ghost","ok":true,"result":"boo"}`)

	ctrl.push(`{"id":"real","tool":"active_tab","args":{}}`)
	eventually(t, func() bool { return ext.writeCount() == 1 }, "extension must stay usable after an unknown reply")
	ext.push(`{"id":"real","ok":true,"result":{}}`)
	eventually(t, func() bool { return ctrl.writeCount() == 1 })

	var reply api.ReplyEnvelope
	require.NoError(t, json.Unmarshal(ctrl.written()[0], &reply))
	assert.Equal(t, "real", reply.ID)
	assert.Equal(t, 0, pendingCount(b))
}

func TestPassiveAndMalformedFramesIgnored(t *testing.T) {
	b := New(nil)
	ext := newFakeConn("ext")
	ctrl := newFakeConn("ctrl")
	go b.HandleConnection(ext)
	go b.HandleConnection(ctrl)

	ext.push(`{"event":"hello"}`)
	eventually(t, b.ExtensionConnected)

	// None of these may produce output or take down a connection.
	ext.push(`{"event":"tabUpdated","url":"https://example.com"}`)
	ctrl.push(`not json at all`)
	ctrl.push(`{"unrelated":"keys"}`)
	ctrl.push(`[1,2,3]`)
	ctrl.push(`null`)

	ctrl.push(`{"id":"alive","tool":"get_all_open_tabs","args":{}}`)
	eventually(t, func() bool { return ext.writeCount() == 1 }, "connection should survive garbage frames")
	ext.push(`{"id":"alive","ok":true,"result":[]}`)
	eventually(t, func() bool { return ctrl.writeCount() == 1 })

	assert.Equal(t, 2, connCount(b))
	assert.True(t, b.ExtensionConnected())
}

func TestRequestIDReuseOverwrites(t *testing.T) {
	b := New(nil)
	ext := newFakeConn("ext")
	ctrl1 := newFakeConn("ctrl1")
	ctrl2 := newFakeConn("ctrl2")
	go b.HandleConnection(ext)
	go b.HandleConnection(ctrl1)
	go b.HandleConnection(ctrl2)

	ext.push(`{"event":"hello"}`)
	eventually(t, b.ExtensionConnected)

	ctrl1.push(`{"id":"dup","tool":"active_tab","args":{}}`)
	eventually(t, func() bool { return ext.writeCount() == 1 })

	ctrl2.push(`{"id":"dup","tool":"active_tab","args":{}}`)
	eventually(t, func() bool { return ext.writeCount() == 2 })
	require.Equal(t, 1, pendingCount(b), "reused id should overwrite, not accumulate")

	ext.push(`{"id":"dup","ok":true,"result":{}}`)
	eventually(t, func() bool { return ctrl2.writeCount() == 1 }, "reply should go to the most recent origin")
	assert.Equal(t, 0, ctrl1.writeCount(), "the overwritten origin receives nothing")
	assert.Equal(t, 0, pendingCount(b))
}

func TestControllerCanBecomeExtension(t *testing.T) {
	b := New(nil)
	conn := newFakeConn("dual")
	go b.HandleConnection(conn)

	conn.push(`{"id":"early","tool":"active_tab","args":{}}`)
	eventually(t, func() bool { return conn.writeCount() == 1 }, "request before hello should get a synthesized error")

	conn.push(`{"event":"hello"}`)
	eventually(t, b.ExtensionConnected, "a classified controller may still claim the extension slot")
}

func TestSendFailuresAreSwallowed(t *testing.T) {
	b := New(nil)
	ext := newFakeConn("ext")
	ext.failWrites = true
	ctrl := newFakeConn("ctrl")
	go b.HandleConnection(ext)
	go b.HandleConnection(ctrl)

	ext.push(`{"event":"hello"}`)
	eventually(t, b.ExtensionConnected)

	// Forwarding fails server-side; the bridge logs and carries on. The
	// pending entry stays until a reply or the origin's reaper removes it.
	ctrl.push(`{"id":"r1","tool":"active_tab","args":{}}`)
	eventually(t, func() bool { return pendingCount(b) == 1 })
	assert.Equal(t, 0, ctrl.writeCount(), "a failed forward does not synthesize an error")

	// The broken extension goes away; the bridge must keep serving.
	ext.Close()
	eventually(t, func() bool { return !b.ExtensionConnected() })

	ctrl.push(`{"id":"r2","tool":"active_tab","args":{}}`)
	eventually(t, func() bool { return ctrl.writeCount() == 1 })
	var reply api.ReplyEnvelope
	require.NoError(t, json.Unmarshal(ctrl.written()[0], &reply))
	assert.Equal(t, "r2", reply.ID)
	assert.Equal(t, api.ErrNotConnected, reply.Error)

	// r1's entry belongs to a still-live origin, so it survives.
	assert.Equal(t, 1, pendingCount(b))

	// A synthesized error hitting a broken origin is swallowed as well.
	brokenCtrl := newFakeConn("broken")
	brokenCtrl.failWrites = true
	go b.HandleConnection(brokenCtrl)
	brokenCtrl.push(`{"id":"r3","tool":"active_tab","args":{}}`)
	eventually(t, func() bool { return connCount(b) == 2 })

	ctrl.push(`{"id":"r4","tool":"active_tab","args":{}}`)
	eventually(t, func() bool { return ctrl.writeCount() == 2 }, "bridge should keep serving after swallowed failures")
}
