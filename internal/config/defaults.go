package config

// Default returns the built-in configuration values.
func Default() Config {
	return Config{
		Paths: Paths{},
		Import: Import{
			DataSource:        "AAA",
			WavExtension:      ".wav",
			UltrasoundExt:     ".ult",
			PromptExtension:   ".txt",
			UltrasoundMetaExt: "US.txt",
		},
		Audio: Audio{
			MainsFrequency: 50,
			DetectBeep:     true,
		},
		Time: Time{
			Epsilon: 0,
		},
		Pipeline: Pipeline{
			PixelDifference: PixelDifference{
				Norms:             []string{"l2"},
				Timesteps:         []int{1},
				ReleaseDataMemory: true,
			},
			SplineMetrics: SplineMetrics{
				Metrics:   []string{"annd"},
				Timesteps: []int{1},
			},
			AggregateImages: AggregateImages{
				Metrics: []string{"mean"},
			},
			DistanceMatrices: DistanceMatrices{
				Metrics: []string{"mean_squared_error"},
			},
			Downsample: Downsample{
				ModalityPattern: "PD",
				MatchTimestep:   true,
			},
			Peaks: Peaks{
				ModalityPattern: "PD l2 on RawUltrasound",
				MinDistance:     2,
			},
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}
