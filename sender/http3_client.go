package sender

import (
	"crypto/tls"
	"net/http"
	"time"

	"vault/config"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
)

// 创建非单例的 HTTP/3 客户端
func createHttp3Client(cfg config.ClientConfig) *http.Client {
	tlsCfg := &tls.Config{
		// 节点默认使用自签名证书
		InsecureSkipVerify: true,
		MinVersion:         tls.VersionTLS13,
		MaxVersion:         tls.VersionTLS13,
		ClientSessionCache: tls.NewLRUClientSessionCache(128),
		// 添加ALPN协议支持
		NextProtos: []string{"h3"},
	}

	tr := &http3.Transport{
		TLSClientConfig: tlsCfg,
		QUICConfig: &quic.Config{
			KeepAlivePeriod: 10 * time.Second,
			MaxIdleTimeout:  5 * time.Minute,
		},
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{
		Transport: tr,
		Timeout:   timeout,
	}
}
