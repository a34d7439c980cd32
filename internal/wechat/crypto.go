package wechat

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"errors"
	"fmt"
)

var ErrInvalidMsgSignature = errors.New("wechat: invalid message signature")

// 安全模式固定使用 32 字节分组的 PKCS7 填充
const cryptoBlockSize = 32

// Crypto 实现公众号安全模式（encrypt_type=aes）的消息加解密。
// EncodingAESKey 为 43 字符 base64，补一个 "=" 解出 32 字节密钥，IV 取密钥前 16 字节。
type Crypto struct {
	token string
	appID string
	key   []byte
}

func NewCrypto(token, encodingAESKey, appID string) (*Crypto, error) {
	if len(encodingAESKey) != 43 {
		return nil, fmt.Errorf("wechat: encoding aes key must be 43 chars, got %d", len(encodingAESKey))
	}
	key, err := base64.StdEncoding.DecodeString(encodingAESKey + "=")
	if err != nil {
		return nil, fmt.Errorf("wechat: decode aes key: %w", err)
	}
	return &Crypto{token: token, appID: appID, key: key}, nil
}

type encryptedEnvelope struct {
	XMLName xml.Name `xml:"xml"`
	Encrypt string   `xml:"Encrypt"`
}

type encryptedReply struct {
	XMLName      xml.Name  `xml:"xml"`
	Encrypt      cdataText `xml:"Encrypt"`
	MsgSignature cdataText `xml:"MsgSignature"`
	TimeStamp    string    `xml:"TimeStamp"`
	Nonce        cdataText `xml:"Nonce"`
}

// DecryptMessage 校验 msg_signature 后解出明文消息 XML。
// 签名不符返回 ErrInvalidMsgSignature，调用方据此区分 403 与 400。
func (c *Crypto) DecryptMessage(envelope []byte, msgSignature, timestamp, nonce string) ([]byte, error) {
	var env encryptedEnvelope
	if err := xml.Unmarshal(envelope, &env); err != nil {
		return nil, fmt.Errorf("wechat: parse encrypted envelope: %w", err)
	}

	expected := signSHA1(c.token, timestamp, nonce, env.Encrypt)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(msgSignature)) != 1 {
		return nil, ErrInvalidMsgSignature
	}

	ct, err := base64.StdEncoding.DecodeString(env.Encrypt)
	if err != nil {
		return nil, fmt.Errorf("wechat: decode ciphertext: %w", err)
	}
	if len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return nil, errors.New("wechat: ciphertext length not aligned")
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}
	pt := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, c.key[:aes.BlockSize]).CryptBlocks(pt, ct)

	pt, err = pkcs7Unpad(pt)
	if err != nil {
		return nil, err
	}
	if len(pt) < 20 {
		return nil, errors.New("wechat: plaintext too short")
	}

	// 明文布局：16 字节随机串 + 4 字节网络序长度 + 消息体 + AppID
	msgLen := binary.BigEndian.Uint32(pt[16:20])
	if int(msgLen) > len(pt)-20 {
		return nil, errors.New("wechat: message length out of range")
	}
	if appID := string(pt[20+msgLen:]); appID != c.appID {
		return nil, fmt.Errorf("wechat: appid mismatch: %q", appID)
	}
	return pt[20 : 20+msgLen], nil
}

// EncryptMessage 加密回复 XML 并套上带 MsgSignature 的安全模式信封
func (c *Crypto) EncryptMessage(plainXML []byte, timestamp, nonce string) ([]byte, error) {
	random := make([]byte, 16)
	if _, err := rand.Read(random); err != nil {
		return nil, err
	}

	buf := make([]byte, 0, 20+len(plainXML)+len(c.appID)+cryptoBlockSize)
	buf = append(buf, random...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(plainXML)))
	buf = append(buf, plainXML...)
	buf = append(buf, c.appID...)
	buf = pkcs7Pad(buf, cryptoBlockSize)

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}
	ct := make([]byte, len(buf))
	cipher.NewCBCEncrypter(block, c.key[:aes.BlockSize]).CryptBlocks(ct, buf)

	encrypted := base64.StdEncoding.EncodeToString(ct)
	reply := encryptedReply{
		Encrypt:      cdataText{encrypted},
		MsgSignature: cdataText{signSHA1(c.token, timestamp, nonce, encrypted)},
		TimeStamp:    timestamp,
		Nonce:        cdataText{nonce},
	}
	return xml.Marshal(reply)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	pad := make([]byte, n)
	for i := range pad {
		pad[i] = byte(n)
	}
	return append(data, pad...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("wechat: empty plaintext")
	}
	n := int(data[len(data)-1])
	if n < 1 || n > cryptoBlockSize || n > len(data) {
		return nil, errors.New("wechat: bad padding")
	}
	return data[:len(data)-n], nil
}
