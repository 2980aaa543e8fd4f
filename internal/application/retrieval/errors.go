package retrieval

import "errors"

// ErrIndexUnavailable 向量索引未配置或不可用
var ErrIndexUnavailable = errors.New("chunk index unavailable")
