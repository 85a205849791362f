package config

const (
	defaultComicDir       = "~/comics"
	defaultZipDir         = "~/downloads"
	defaultMusicDir       = "~/music"
	defaultStagingDir     = "~/.local/share/comicreel/staging"
	defaultLogDir         = "~/.local/share/comicreel/logs"
	defaultHistoryDB      = "~/.local/share/comicreel/history.db"
	defaultFrameRate      = 4
	defaultFadeSeconds    = 2.0
	defaultMinFreeSpaceGB = 2
	defaultLogFormat      = "auto"
	defaultLogLevel       = "info"
)

func defaultImageExtensions() []string {
	return []string{".webp", ".jpg", ".jpeg", ".png"}
}

func defaultAudioExtensions() []string {
	return []string{".mp3", ".wav", ".aac", ".flac", ".ogg", ".opus"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Library: Library{
			ComicDir: defaultComicDir,
			ZipDir:   defaultZipDir,
			MusicDir: defaultMusicDir,
		},
		Video: Video{
			FrameRate:       defaultFrameRate,
			FadeIn:          defaultFadeSeconds,
			FadeOut:         defaultFadeSeconds,
			ImageExtensions: defaultImageExtensions(),
			AudioExtensions: defaultAudioExtensions(),
		},
		Pipeline: Pipeline{
			Reconstruction: true,
			MinFreeSpaceGB: defaultMinFreeSpaceGB,
		},
		Paths: Paths{
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
			HistoryDB:  defaultHistoryDB,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
