package api

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/xml"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/LJTian/AIDailyHub/internal/pipeline"
	"github.com/LJTian/AIDailyHub/internal/storage"
	"github.com/LJTian/AIDailyHub/internal/wechat"
	"github.com/gin-gonic/gin"
)

type fakeLister struct {
	items []storage.News
}

func (f *fakeLister) ListNews(source string, limit int) ([]storage.News, error) {
	var out []storage.News
	for _, n := range f.items {
		if source != "" && n.Source != source {
			continue
		}
		out = append(out, n)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeLister) ListLatest(limit int) ([]storage.News, error) {
	return f.ListNews("", limit)
}

type noopStore struct{}

func (noopStore) ExistingURLs() (map[string]struct{}, error) { return map[string]struct{}{}, nil }
func (noopStore) InsertBatch(items []storage.News) error     { return nil }
func (noopStore) UpdateStats(url, stars, upvotes string) error {
	return nil
}

func newTestServer(store NewsLister) *gin.Engine {
	return newTestServerWithCrypto(store, nil)
}

func newTestServerWithCrypto(store NewsLister, crypto *wechat.Crypto) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	s := NewServer(store, pipeline.New(nil, nil, noopStore{}), nil, "test_token", crypto)
	s.RegisterRoutes(r)
	return r
}

func signFor(token, ts, nonce string) string {
	parts := []string{token, ts, nonce}
	sort.Strings(parts)
	h := sha1.Sum([]byte(strings.Join(parts, "")))
	return hex.EncodeToString(h[:])
}

func strptr(s string) *string { return &s }

func TestHealth(t *testing.T) {
	r := newTestServer(&fakeLister{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d", w.Code)
	}
}

func TestListNewsFiltersBySource(t *testing.T) {
	r := newTestServer(&fakeLister{items: []storage.News{
		{Title: "一", Source: "GitHub Trending", URL: "https://example.com/1"},
		{Title: "二", Source: "QbitAI", URL: "https://example.com/2"},
	}})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/news?source=QbitAI&limit=10", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "https://example.com/2") || strings.Contains(body, "https://example.com/1") {
		t.Fatalf("source filter not applied: %s", body)
	}
}

func TestTriggerUpdateReportsStarted(t *testing.T) {
	r := newTestServer(&fakeLister{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/trigger-update", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "started") {
		t.Fatalf("trigger should report started: %s", w.Body.String())
	}
}

func TestWechatVerifyEcho(t *testing.T) {
	r := newTestServer(&fakeLister{})

	sig := signFor("test_token", "111", "nnn")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/api/v1/wechat?signature="+sig+"&timestamp=111&nonce=nnn&echostr=hello", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Body.String() != "hello" {
		t.Fatalf("echostr = %q", w.Body.String())
	}
}

func TestWechatTamperedSignatureRejected(t *testing.T) {
	r := newTestServer(&fakeLister{items: []storage.News{
		{Title: "机密内容", URL: "https://example.com/1"},
	}})

	body := strings.NewReader(`<xml><MsgType><![CDATA[text]]></MsgType><Content><![CDATA[最新]]></Content></xml>`)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost,
		"/api/v1/wechat?signature=bad&timestamp=111&nonce=nnn", body))

	if w.Code != http.StatusForbidden {
		t.Fatalf("tampered signature status = %d, want 403", w.Code)
	}
	if strings.Contains(w.Body.String(), "机密内容") {
		t.Fatalf("rejected request must not leak reply content")
	}
}

func TestWechatDigestCommandReturnsNews(t *testing.T) {
	r := newTestServer(&fakeLister{items: []storage.News{
		{Title: "最新进展", URL: "https://example.com/1", Summary: strptr("一句话摘要"), Thumbnail: "https://img/1.png"},
	}})

	sig := signFor("test_token", "111", "nnn")
	body := strings.NewReader(`<xml>
		<ToUserName><![CDATA[gh]]></ToUserName>
		<FromUserName><![CDATA[user]]></FromUserName>
		<MsgType><![CDATA[text]]></MsgType>
		<Content><![CDATA[最新]]></Content>
	</xml>`)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost,
		"/api/v1/wechat?signature="+sig+"&timestamp=111&nonce=nnn", body))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	out := w.Body.String()
	if !strings.Contains(out, "<![CDATA[news]]>") || !strings.Contains(out, "最新进展") {
		t.Fatalf("expected news reply, got: %s", out)
	}
}

func TestWechatOtherTextGetsHelpReply(t *testing.T) {
	r := newTestServer(&fakeLister{})

	sig := signFor("test_token", "111", "nnn")
	body := strings.NewReader(`<xml>
		<ToUserName><![CDATA[gh]]></ToUserName>
		<FromUserName><![CDATA[user]]></FromUserName>
		<MsgType><![CDATA[text]]></MsgType>
		<Content><![CDATA[你好]]></Content>
	</xml>`)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost,
		"/api/v1/wechat?signature="+sig+"&timestamp=111&nonce=nnn", body))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "回复【最新】获取 AI 日报") {
		t.Fatalf("expected help reply, got: %s", w.Body.String())
	}
}

const testAESKey = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

type encryptedDoc struct {
	Encrypt      string `xml:"Encrypt"`
	MsgSignature string `xml:"MsgSignature"`
	TimeStamp    string `xml:"TimeStamp"`
}

// encryptInbound 把明文消息包成安全模式请求体，并返回对应的 msg_signature
func encryptInbound(t *testing.T, crypto *wechat.Crypto, plain, ts, nonce string) (string, string) {
	t.Helper()
	env, err := crypto.EncryptMessage([]byte(plain), ts, nonce)
	if err != nil {
		t.Fatalf("encrypt inbound: %v", err)
	}
	var doc encryptedDoc
	if err := xml.Unmarshal(env, &doc); err != nil {
		t.Fatalf("parse envelope: %v", err)
	}
	return string(env), doc.MsgSignature
}

func TestWechatEncryptedMessageRoundTrip(t *testing.T) {
	crypto, err := wechat.NewCrypto("test_token", testAESKey, "wxappid")
	if err != nil {
		t.Fatalf("NewCrypto: %v", err)
	}
	r := newTestServerWithCrypto(&fakeLister{items: []storage.News{
		{Title: "最新进展", URL: "https://example.com/1", Summary: strptr("一句话摘要")},
	}}, crypto)

	plain := `<xml><ToUserName><![CDATA[gh]]></ToUserName><FromUserName><![CDATA[user]]></FromUserName><MsgType><![CDATA[text]]></MsgType><Content><![CDATA[最新]]></Content></xml>`
	body, msgSig := encryptInbound(t, crypto, plain, "111", "nnn")

	sig := signFor("test_token", "111", "nnn")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost,
		"/api/v1/wechat?signature="+sig+"&timestamp=111&nonce=nnn&encrypt_type=aes&msg_signature="+msgSig,
		strings.NewReader(body)))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	// 回复本身也应是密文，明文内容不允许直接出现
	out := w.Body.String()
	if strings.Contains(out, "最新进展") {
		t.Fatalf("encrypted reply must not contain plaintext: %s", out)
	}

	var doc encryptedDoc
	if err := xml.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("parse encrypted reply: %v", err)
	}
	decrypted, err := crypto.DecryptMessage(w.Body.Bytes(), doc.MsgSignature, doc.TimeStamp, "nnn")
	if err != nil {
		t.Fatalf("decrypt reply: %v", err)
	}
	if !strings.Contains(string(decrypted), "<![CDATA[news]]>") || !strings.Contains(string(decrypted), "最新进展") {
		t.Fatalf("decrypted reply = %s", decrypted)
	}
}

func TestWechatEncryptedTamperedMsgSignatureRejected(t *testing.T) {
	crypto, err := wechat.NewCrypto("test_token", testAESKey, "wxappid")
	if err != nil {
		t.Fatalf("NewCrypto: %v", err)
	}
	r := newTestServerWithCrypto(&fakeLister{items: []storage.News{
		{Title: "机密内容", URL: "https://example.com/1"},
	}}, crypto)

	plain := `<xml><MsgType><![CDATA[text]]></MsgType><Content><![CDATA[最新]]></Content></xml>`
	body, _ := encryptInbound(t, crypto, plain, "111", "nnn")

	sig := signFor("test_token", "111", "nnn")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost,
		"/api/v1/wechat?signature="+sig+"&timestamp=111&nonce=nnn&encrypt_type=aes&msg_signature=bad",
		strings.NewReader(body)))

	if w.Code != http.StatusForbidden {
		t.Fatalf("tampered msg_signature status = %d, want 403", w.Code)
	}
	if strings.Contains(w.Body.String(), "机密内容") {
		t.Fatalf("rejected request must not leak reply content")
	}
}

func TestWechatEncryptedWithoutCryptoConfigured(t *testing.T) {
	r := newTestServer(&fakeLister{})

	sig := signFor("test_token", "111", "nnn")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost,
		"/api/v1/wechat?signature="+sig+"&timestamp=111&nonce=nnn&encrypt_type=aes&msg_signature=x",
		strings.NewReader("<xml><Encrypt><![CDATA[abc]]></Encrypt></xml>")))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("unconfigured aes mode status = %d, want 500", w.Code)
	}
}
