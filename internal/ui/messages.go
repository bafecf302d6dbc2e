package ui

// Message keys.
const (
	msgRecording     = "recording"
	msgStopping      = "stopping"
	msgStopped       = "stopped"
	msgStartFailed   = "start_failed"
	msgStorageError  = "storage_error"
	msgSourceError   = "source_error"
	msgBusy          = "busy"
	msgLockedWhileOn = "locked"
	msgFrontEnd      = "front_end"
	msgMixPolicy     = "mix_policy"
	msgIdle          = "idle"
	msgHelp          = "help"
	msgOn            = "on"
	msgOff           = "off"
	msgUnknownKey    = "unknown_key"
)

var messages = map[string]map[string]string{
	"en": {
		msgRecording:     "REC",
		msgStopping:      "finishing",
		msgStopped:       "saved",
		msgStartFailed:   "could not start recording",
		msgStorageError:  "storage error, recording stopped",
		msgSourceError:   "microphone error, recording stopped",
		msgBusy:          "still saving the last recording",
		msgLockedWhileOn: "cannot change while recording",
		msgFrontEnd:      "speech enhancement",
		msgMixPolicy:     "channel mode",
		msgIdle:          "ready",
		msgHelp:          "keys: Enter/r start or stop, a speech enhancement, m channel mode, s status, q quit",
		msgOn:            "on",
		msgOff:           "off",
		msgUnknownKey:    "unknown key",
	},
	"cn": {
		msgRecording:     "录音中",
		msgStopping:      "正在保存",
		msgStopped:       "已保存",
		msgStartFailed:   "无法开始录音",
		msgStorageError:  "存储错误，录音已停止",
		msgSourceError:   "麦克风错误，录音已停止",
		msgBusy:          "正在保存上一段录音",
		msgLockedWhileOn: "录音时无法修改",
		msgFrontEnd:      "语音增强",
		msgMixPolicy:     "声道模式",
		msgIdle:          "就绪",
		msgHelp:          "按键: 回车/r 开始或停止, a 语音增强, m 声道模式, s 状态, q 退出",
		msgOn:            "开",
		msgOff:           "关",
		msgUnknownKey:    "未知按键",
	},
}

func text(lang, key string) string {
	if m, ok := messages[lang]; ok {
		if s, ok := m[key]; ok {
			return s
		}
	}
	return messages["en"][key]
}
