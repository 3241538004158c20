// internal/secrets/secrets.go
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const keySize = 32

// Keeper 负责API密钥的落盘加密
// 主密钥保存在数据目录下的密钥文件里，首次启动时自动生成
type Keeper struct {
	key []byte
}

// LoadOrCreate 读取数据目录下的主密钥，不存在则生成并写入
func LoadOrCreate(dataDir string) (*Keeper, error) {
	keyPath := filepath.Join(dataDir, ".secret_key")

	if data, err := os.ReadFile(keyPath); err == nil {
		key, err := base64.StdEncoding.DecodeString(string(data))
		if err != nil || len(key) != keySize {
			return nil, fmt.Errorf("主密钥文件损坏: %s", keyPath)
		}
		return &Keeper{key: key}, nil
	}

	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("生成主密钥失败: %w", err)
	}

	encoded := base64.StdEncoding.EncodeToString(key)
	if err := os.WriteFile(keyPath, []byte(encoded), 0600); err != nil {
		return nil, fmt.Errorf("写入主密钥失败: %w", err)
	}
	return &Keeper{key: key}, nil
}

// NewKeeper 用给定的32字节密钥创建，短密钥补零、长密钥截断
func NewKeeper(key []byte) *Keeper {
	normalized := make([]byte, keySize)
	copy(normalized, key)
	return &Keeper{key: normalized}
}

// Encrypt AES-GCM加密，返回base64编码结果
func (k *Keeper) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(k.key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt 解密 Encrypt 的输出
func (k *Keeper) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(k.key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(raw) < nonceSize {
		return "", fmt.Errorf("密文长度不足")
	}

	nonce, payload := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, payload, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
