package config

// Storage backends.
const (
	BackendS3    = "s3"
	BackendMinIO = "minio"
	BackendLocal = "local"
)

const (
	defaultBind              = "127.0.0.1:8005"
	defaultPublicURL         = "http://127.0.0.1:8005"
	defaultSubmitRate        = 2.0
	defaultSubmitBurst       = 4
	defaultScratchDir        = "~/.local/share/burnin/scratch"
	defaultDataDir           = "~/.local/share/burnin"
	defaultLogDir            = "~/.local/share/burnin/logs"
	defaultMaxUploadBytes    = 500 * 1024 * 1024
	defaultFetchSeconds      = 600
	defaultTransformSeconds  = 600
	defaultStorageSeconds    = 600
	defaultMetadataSeconds   = 30
	defaultFFmpegBinary      = "ffmpeg"
	defaultFFprobeBinary     = "ffprobe"
	defaultCodec             = "libx264"
	defaultPreset            = "medium"
	defaultAudioCodec        = "aac"
	defaultAudioBitrate      = "128k"
	defaultQuality           = 23
	defaultResolution        = "360p"
	defaultMaxConcurrent     = 2
	defaultSubtitleMaxBytes  = 10 * 1024 * 1024
	defaultSubtitleUserAgent = "burnin/dev"
	defaultChunkSize         = 1024 * 1024
	minChunkSize             = 64 * 1024
	defaultBackend           = BackendLocal
	defaultPrefix            = "videos/"
	defaultRegion            = "us-east-1"
	defaultPresignTTLSeconds = 3600
	defaultLocalDir          = "~/.local/share/burnin/artifacts"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"

	defaultNotifyTimeoutSeconds = 10
)

var defaultAllowedExtensions = []string{".mp4", ".avi", ".mov", ".mkv"}

// ValidPresets lists the x264/x265 speed presets ffmpeg accepts.
var ValidPresets = []string{
	"ultrafast", "superfast", "veryfast", "faster", "fast",
	"medium", "slow", "slower", "veryslow",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			Bind:        defaultBind,
			PublicURL:   defaultPublicURL,
			SubmitRate:  defaultSubmitRate,
			SubmitBurst: defaultSubmitBurst,
		},
		Paths: Paths{
			ScratchDir: defaultScratchDir,
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
		},
		Limits: Limits{
			MaxUploadBytes:    defaultMaxUploadBytes,
			AllowedExtensions: append([]string(nil), defaultAllowedExtensions...),
		},
		Timeouts: Timeouts{
			FetchSeconds:     defaultFetchSeconds,
			TransformSeconds: defaultTransformSeconds,
			StorageSeconds:   defaultStorageSeconds,
			MetadataSeconds:  defaultMetadataSeconds,
		},
		Transform: Transform{
			FFmpegBinary:      defaultFFmpegBinary,
			FFprobeBinary:     defaultFFprobeBinary,
			Codec:             defaultCodec,
			Preset:            defaultPreset,
			AudioCodec:        defaultAudioCodec,
			AudioBitrate:      defaultAudioBitrate,
			DefaultQuality:    defaultQuality,
			DefaultResolution: defaultResolution,
			MaxConcurrent:     defaultMaxConcurrent,
			Probe:             true,
		},
		Subtitles: Subtitles{
			MaxBytes:  defaultSubtitleMaxBytes,
			UserAgent: defaultSubtitleUserAgent,
		},
		Streaming: Streaming{
			ChunkSize: defaultChunkSize,
		},
		Storage: Storage{
			Backend:           defaultBackend,
			Prefix:            defaultPrefix,
			Region:            defaultRegion,
			UseSSL:            true,
			PresignTTLSeconds: defaultPresignTTLSeconds,
			LocalDir:          defaultLocalDir,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNotifyTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
