// defaults.go: viper defaults for all settings
package conf

import "github.com/spf13/viper"

func setDefaults() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "CountNet-Go")
	viper.SetDefault("main.datadir", "data")
	viper.SetDefault("main.log.enabled", false)
	viper.SetDefault("main.log.path", "logs/countnet.log")

	viper.SetDefault("safety.enabled", true)
	viper.SetDefault("safety.failclosed", false)
	viper.SetDefault("safety.blockthreshold", 0.8)
	viper.SetDefault("safety.modelpath", "")
	viper.SetDefault("safety.extrablocklist", []string{})

	viper.SetDefault("detector.modelpath", "models/detector.tflite")
	viper.SetDefault("detector.inputsize", 640)
	viper.SetDefault("detector.threshold", 0.15)
	viper.SetDefault("detector.typethresholds", map[string]float64{})
	viper.SetDefault("detector.equivalencethreshold", 0.3)
	viper.SetDefault("detector.equivalencepenalty", 0.8)
	viper.SetDefault("detector.inferenceslots", 1)
	viper.SetDefault("detector.savesegmented", true)

	viper.SetDefault("fewshot.mintrainingimages", 3)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "data/countnet.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "countnet")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.database", "countnet")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.debug", false)

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
	viper.SetDefault("sentry.environment", "production")
}

// Default returns settings populated with the built-in defaults, without
// touching the config file. Used by tests and the config subcommand.
func Default() *Settings {
	s := &Settings{}
	s.Main.Name = "CountNet-Go"
	s.Main.DataDir = "data"
	s.Safety.Enabled = true
	s.Safety.BlockThreshold = 0.8
	s.Detector.ModelPath = "models/detector.tflite"
	s.Detector.InputSize = 640
	s.Detector.Threshold = 0.15
	s.Detector.EquivalenceThreshold = 0.3
	s.Detector.EquivalencePenalty = 0.8
	s.Detector.InferenceSlots = 1
	s.Detector.SaveSegmented = true
	s.FewShot.MinTrainingImages = 3
	s.Output.SQLite.Enabled = true
	s.Output.SQLite.Path = "data/countnet.db"
	s.WebServer.Port = "8080"
	s.Sentry.Environment = "production"
	return s
}
