package api

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/LJTian/AIDailyHub/internal/notify"
	"github.com/LJTian/AIDailyHub/internal/pipeline"
	"github.com/LJTian/AIDailyHub/internal/storage"
	"github.com/LJTian/AIDailyHub/internal/wechat"
	"github.com/gin-gonic/gin"
)

const wechatReplySummaryRunes = 50

// NewsLister 查询接口需要的只读存储能力
type NewsLister interface {
	ListNews(source string, limit int) ([]storage.News, error)
	ListLatest(limit int) ([]storage.News, error)
}

type Server struct {
	store        NewsLister
	pipeline     *pipeline.Pipeline
	notifier     *notify.Notifier
	wechatToken  string
	wechatCrypto *wechat.Crypto
}

// NewServer crypto 为 nil 时只接受明文模式的公众号消息
func NewServer(store NewsLister, p *pipeline.Pipeline, n *notify.Notifier, wechatToken string, crypto *wechat.Crypto) *Server {
	return &Server{
		store:        store,
		pipeline:     p,
		notifier:     n,
		wechatToken:  wechatToken,
		wechatCrypto: crypto,
	}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/news", s.listNews)
		v1.POST("/trigger-update", s.triggerUpdate)
		v1.POST("/notify", s.triggerNotify)
		v1.GET("/wechat", s.wechatVerify)
		v1.POST("/wechat", s.wechatMessage)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listNews(c *gin.Context) {
	source := c.Query("source")

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit <= 0 {
		limit = 10
	}

	items, err := s.store.ListNews(source, limit)
	if err != nil {
		log.Printf("api: list news: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "internal server error",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   items,
	})
}

// triggerUpdate 后台启动一轮流水线，立即返回 started。
// 约定只报告“已启动”，执行结果由日志与定时任务收口。
func (s *Server) triggerUpdate(c *gin.Context) {
	go func() {
		report, err := s.pipeline.Run(context.Background())
		if err != nil {
			if errors.Is(err, pipeline.ErrRunInProgress) {
				log.Println("api: trigger-update skipped, run already in progress")
				return
			}
			log.Printf("api: background pipeline run failed: %v", err)
			return
		}
		log.Printf("api: background pipeline done, new=%d updated=%d", report.New, report.Updated)
	}()

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Update task started in background",
	})
}

func (s *Server) triggerNotify(c *gin.Context) {
	go func() {
		if err := s.notifier.PushDailyDigest(context.Background()); err != nil {
			log.Printf("api: background notify failed: %v", err)
		}
	}()

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Notification task started in background",
	})
}

// wechatVerify 微信服务器接入校验：签名通过则原样返回 echostr
func (s *Server) wechatVerify(c *gin.Context) {
	if !wechat.CheckSignature(s.wechatToken, c.Query("signature"), c.Query("timestamp"), c.Query("nonce")) {
		log.Println("api: wechat signature verification failed")
		c.String(http.StatusForbidden, "Invalid signature")
		return
	}
	c.String(http.StatusOK, c.Query("echostr"))
}

// wechatMessage 处理入站消息：先验签，后解析；
// 安全模式（encrypt_type=aes）额外校验 msg_signature 并对请求与回复加解密。
// 文本指令返回最新图文列表，其它输入返回帮助文案。
func (s *Server) wechatMessage(c *gin.Context) {
	if !wechat.CheckSignature(s.wechatToken, c.Query("signature"), c.Query("timestamp"), c.Query("nonce")) {
		log.Println("api: wechat signature verification failed")
		c.String(http.StatusForbidden, "Invalid signature")
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "read body failed")
		return
	}

	encrypted := c.Query("encrypt_type") == "aes"
	if encrypted {
		if s.wechatCrypto == nil {
			log.Println("api: wechat aes key or appid not configured for encrypted message")
			c.String(http.StatusInternalServerError, "Server configuration error")
			return
		}
		body, err = s.wechatCrypto.DecryptMessage(body, c.Query("msg_signature"), c.Query("timestamp"), c.Query("nonce"))
		if err != nil {
			if errors.Is(err, wechat.ErrInvalidMsgSignature) {
				log.Println("api: wechat message signature verification failed")
				c.String(http.StatusForbidden, "Invalid encryption signature")
				return
			}
			log.Printf("api: wechat decrypt message: %v", err)
			c.String(http.StatusBadRequest, "Decryption failed")
			return
		}
	}

	msg, err := wechat.ParseMessage(body)
	if err != nil {
		log.Printf("api: wechat parse message: %v", err)
		c.String(http.StatusBadRequest, "parse message failed")
		return
	}

	reply, err := s.buildWechatReply(msg)
	if err != nil {
		log.Printf("api: wechat build reply: %v", err)
		c.String(http.StatusInternalServerError, "internal server error")
		return
	}

	if encrypted {
		reply, err = s.wechatCrypto.EncryptMessage(reply, c.Query("timestamp"), c.Query("nonce"))
		if err != nil {
			log.Printf("api: wechat encrypt reply: %v", err)
			c.String(http.StatusInternalServerError, "internal server error")
			return
		}
	}

	c.Data(http.StatusOK, "application/xml; charset=utf-8", reply)
}

func (s *Server) buildWechatReply(msg *wechat.Message) ([]byte, error) {
	if msg.MsgType != "text" {
		return wechat.TextReply(msg, "暂不支持此类消息")
	}

	if !wechat.IsDigestCommand(msg.Content) {
		return wechat.TextReply(msg, "收到您的消息："+msg.Content+"\n回复【最新】获取 AI 日报")
	}

	items, err := s.store.ListLatest(5)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return wechat.TextReply(msg, "暂无今日资讯")
	}

	articles := make([]wechat.Article, 0, len(items))
	for _, item := range items {
		desc := ""
		if item.Summary != nil {
			desc = truncateRunes(*item.Summary, wechatReplySummaryRunes)
		}
		articles = append(articles, wechat.Article{
			Title:       item.Title,
			Description: desc,
			PicURL:      item.Thumbnail,
			URL:         item.URL,
		})
	}
	return wechat.NewsReply(msg, articles)
}

func truncateRunes(s string, limit int) string {
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit]) + "..."
}
