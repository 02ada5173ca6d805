package main

import (
	"flag"
	"log"
	"os"

	"github.com/mogaika/xsg_export/logger"
	"github.com/mogaika/xsg_export/source"
	"github.com/mogaika/xsg_export/source/yamlsrc"
)

func main() {
	var out, logLevel string
	flag.StringVar(&out, "o", "", "Write yaml into file instead of stdout")
	flag.StringVar(&logLevel, "log-level", "warn", "debug, info, warn or error")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatalf("Usage: %s [-o out.yaml] scene.{gltf,glb,yaml}", os.Args[0])
	}
	if err := logger.Init(logLevel, ""); err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	sc, err := source.Open(flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}

	if out != "" {
		err = yamlsrc.Save(out, sc)
	} else {
		err = yamlsrc.Write(os.Stdout, sc)
	}
	if err != nil {
		log.Fatal(err)
	}
}
