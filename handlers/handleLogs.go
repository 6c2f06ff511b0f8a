package handlers

import (
	"net/http"
	"strconv"

	"vault/logs"
)

// HandleLogs 处理获取日志请求，?max_lines= 截取最后若干行
func (hm *HandlerManager) HandleLogs(w http.ResponseWriter, r *http.Request) {
	hm.Stats.RecordAPICall("HandleLogs")

	logLines := logs.GetLogsForNode(hm.address)

	// 如果指定了最大行数，进行截断
	if raw := r.URL.Query().Get("max_lines"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n < len(logLines) {
			logLines = logLines[len(logLines)-n:]
		}
	}

	writeJSON(w, http.StatusOK, LogsResponse{Logs: logLines})
}
