// Package wechat 处理微信公众号服务器对接：签名校验与消息 XML 编解码。
package wechat

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"sort"
	"strings"
	"time"
)

// signSHA1 字典序拼接各段后做 sha1，明文模式三段、安全模式四段共用
func signSHA1(parts ...string) string {
	sort.Strings(parts)
	h := sha1.Sum([]byte(strings.Join(parts, "")))
	return hex.EncodeToString(h[:])
}

// CheckSignature 校验微信服务器签名：token/timestamp/nonce 字典序拼接后做 sha1。
// 比较使用常量时间，避免时序侧信道。
func CheckSignature(token, signature, timestamp, nonce string) bool {
	if token == "" || signature == "" {
		return false
	}
	expected := signSHA1(token, timestamp, nonce)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// Message 入站消息（只关心文本类型的字段，其余类型仅读 MsgType）
type Message struct {
	XMLName      xml.Name `xml:"xml"`
	ToUserName   string   `xml:"ToUserName"`
	FromUserName string   `xml:"FromUserName"`
	CreateTime   int64    `xml:"CreateTime"`
	MsgType      string   `xml:"MsgType"`
	Content      string   `xml:"Content"`
	MsgID        int64    `xml:"MsgId"`
}

func ParseMessage(body []byte) (*Message, error) {
	var msg Message
	if err := xml.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("wechat: parse message: %w", err)
	}
	return &msg, nil
}

// IsDigestCommand 判断文本是否为“拉取最新资讯”的指令
func IsDigestCommand(content string) bool {
	switch strings.TrimSpace(content) {
	case "最新", "日报", "news":
		return true
	}
	return false
}

// cdataText 微信约定回复内容包在 CDATA 中
type cdataText struct {
	Text string `xml:",cdata"`
}

type textReply struct {
	XMLName      xml.Name  `xml:"xml"`
	ToUserName   cdataText `xml:"ToUserName"`
	FromUserName cdataText `xml:"FromUserName"`
	CreateTime   int64     `xml:"CreateTime"`
	MsgType      cdataText `xml:"MsgType"`
	Content      cdataText `xml:"Content"`
}

// Article 图文回复中的单条内容
type Article struct {
	Title       string
	Description string
	PicURL      string
	URL         string
}

type newsReplyArticle struct {
	Title       cdataText `xml:"Title"`
	Description cdataText `xml:"Description"`
	PicURL      cdataText `xml:"PicUrl"`
	URL         cdataText `xml:"Url"`
}

type newsReply struct {
	XMLName      xml.Name           `xml:"xml"`
	ToUserName   cdataText          `xml:"ToUserName"`
	FromUserName cdataText          `xml:"FromUserName"`
	CreateTime   int64              `xml:"CreateTime"`
	MsgType      cdataText          `xml:"MsgType"`
	ArticleCount int                `xml:"ArticleCount"`
	Articles     []newsReplyArticle `xml:"Articles>item"`
}

// TextReply 渲染文本回复 XML，收发双方互换
func TextReply(msg *Message, content string) ([]byte, error) {
	reply := textReply{
		ToUserName:   cdataText{msg.FromUserName},
		FromUserName: cdataText{msg.ToUserName},
		CreateTime:   time.Now().Unix(),
		MsgType:      cdataText{"text"},
		Content:      cdataText{content},
	}
	return xml.Marshal(reply)
}

// NewsReply 渲染图文列表回复 XML
func NewsReply(msg *Message, articles []Article) ([]byte, error) {
	reply := newsReply{
		ToUserName:   cdataText{msg.FromUserName},
		FromUserName: cdataText{msg.ToUserName},
		CreateTime:   time.Now().Unix(),
		MsgType:      cdataText{"news"},
		ArticleCount: len(articles),
	}
	for _, a := range articles {
		reply.Articles = append(reply.Articles, newsReplyArticle{
			Title:       cdataText{a.Title},
			Description: cdataText{a.Description},
			PicURL:      cdataText{a.PicURL},
			URL:         cdataText{a.URL},
		})
	}
	return xml.Marshal(reply)
}
