package media

import (
	"context"
	"fmt"
	"image"
	"log"
	"math"
	"os"

	"gocv.io/x/gocv"

	"github.com/camden-git/faceblur/geometry"
)

// DNNEnginePaths locates the model files for the OpenCV-backed engine. Only
// the detection pair is mandatory; recognition and age/gender nets are
// optional and their outputs are simply absent when not loaded.
type DNNEnginePaths struct {
	DetectorConfig  string
	DetectorModel   string
	RecognitionPath string // ArcFace-style embedding net
	AgeModel        string
	GenderModel     string
}

// DNNEngine implements Engine on OpenCV DNN: an SSD face detector plus
// optional embedding and age/gender networks run per detected face.
type DNNEngine struct {
	detector    gocv.Net
	recognition gocv.Net
	ageNet      gocv.Net
	genderNet   gocv.Net

	hasRecognition bool
	hasAge         bool
	hasGender      bool

	// detection parameters
	InputSizeW    int
	InputSizeH    int
	MeanVal       gocv.Scalar
	ConfThreshold float32

	// recognition parameters
	RecogSizeW int
	RecogSizeH int
}

// ageBuckets are the midpoints of the standard age-net output ranges.
var ageBuckets = [8]int{1, 5, 10, 18, 28, 40, 50, 70}

// NewDNNEngine loads the DNN models. Missing detection models are a hard
// error, since no detection can occur at all; the caller may retry after
// fixing the paths.
func NewDNNEngine(paths DNNEnginePaths) (*DNNEngine, error) {
	if paths.DetectorConfig == "" || paths.DetectorModel == "" {
		return nil, fmt.Errorf("engine(dnn): detector config or model path is empty")
	}
	for _, p := range []string{paths.DetectorConfig, paths.DetectorModel} {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return nil, fmt.Errorf("engine(dnn): model file does not exist: %s", p)
		}
	}

	detector := gocv.ReadNet(paths.DetectorModel, paths.DetectorConfig)
	if detector.Empty() {
		return nil, fmt.Errorf("engine(dnn): ReadNet returned an empty network for %s", paths.DetectorModel)
	}
	log.Printf("engine(dnn): successfully loaded face detection model")
	tuneBackend(&detector, "detector")

	e := &DNNEngine{
		detector:      detector,
		InputSizeW:    300,
		InputSizeH:    300,
		MeanVal:       gocv.NewScalar(104.0, 177.0, 123.0, 0),
		ConfThreshold: 0.5,
		RecogSizeW:    112,
		RecogSizeH:    112,
	}

	if paths.RecognitionPath != "" {
		net := gocv.ReadNet(paths.RecognitionPath, "")
		if net.Empty() {
			log.Printf("engine(dnn): WARNING - failed to load recognition model %s, embeddings disabled", paths.RecognitionPath)
		} else {
			tuneBackend(&net, "recognition")
			e.recognition = net
			e.hasRecognition = true
			log.Printf("engine(dnn): loaded recognition model")
		}
	}

	if paths.AgeModel != "" {
		net := gocv.ReadNet(paths.AgeModel, "")
		if net.Empty() {
			log.Printf("engine(dnn): WARNING - failed to load age model %s, age estimation disabled", paths.AgeModel)
		} else {
			tuneBackend(&net, "age")
			e.ageNet = net
			e.hasAge = true
			log.Printf("engine(dnn): loaded age model")
		}
	}

	if paths.GenderModel != "" {
		net := gocv.ReadNet(paths.GenderModel, "")
		if net.Empty() {
			log.Printf("engine(dnn): WARNING - failed to load gender model %s, gender estimation disabled", paths.GenderModel)
		} else {
			tuneBackend(&net, "gender")
			e.genderNet = net
			e.hasGender = true
			log.Printf("engine(dnn): loaded gender model")
		}
	}

	return e, nil
}

// tuneBackend tries CUDA first and falls back to the default CPU backend.
func tuneBackend(net *gocv.Net, name string) {
	cudaBackendErr := net.SetPreferableBackend(gocv.NetBackendCUDA)
	cudaTargetErr := net.SetPreferableTarget(gocv.NetTargetCUDA)
	if cudaBackendErr == nil && cudaTargetErr == nil {
		log.Printf("engine(dnn): set backend/target to CUDA for %s", name)
		return
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)
	log.Printf("engine(dnn): set backend/target to CPU (default) for %s", name)
}

// Close releases all loaded networks.
func (e *DNNEngine) Close() error {
	e.detector.Close()
	if e.hasRecognition {
		e.recognition.Close()
	}
	if e.hasAge {
		e.ageNet.Close()
	}
	if e.hasGender {
		e.genderNet.Close()
	}
	log.Println("engine(dnn): closed networks")
	return nil
}

// Detect runs face detection and, per face, the optional embedding and
// age/gender networks. Boxes come back in the input image's own frame.
func (e *DNNEngine) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("engine(dnn): failed to convert image: %w", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, fmt.Errorf("engine(dnn): empty input matrix")
	}

	boxes := e.detectBoxes(mat)
	detections := make([]Detection, 0, len(boxes))
	for _, b := range boxes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		d := Detection{Box: b.box, Confidence: b.confidence}

		faceRegion := mat.Region(b.box.Rect())
		if e.hasRecognition {
			d.Embedding = e.extractEmbedding(faceRegion)
		}
		if e.hasAge {
			d.Age = e.estimateAge(faceRegion)
		}
		if e.hasGender {
			d.Gender, d.GenderConfidence = e.estimateGender(faceRegion)
		}
		faceRegion.Close()

		detections = append(detections, d)
	}

	return detections, nil
}

type scoredBox struct {
	box        geometry.Box
	confidence float32
}

// detectBoxes runs the SSD detector and parses its [1,1,N,7] output.
func (e *DNNEngine) detectBoxes(img gocv.Mat) []scoredBox {
	imgHeight := float32(img.Rows())
	imgWidth := float32(img.Cols())

	blob := gocv.BlobFromImage(img, 1.0, image.Pt(e.InputSizeW, e.InputSizeH), e.MeanVal, false, false)
	defer blob.Close()

	e.detector.SetInput(blob, "")
	out := e.detector.Forward("")
	defer out.Close()

	sizes := out.Size()
	if len(sizes) < 3 {
		log.Printf("engine(dnn): unexpected output matrix dimensions: %v", sizes)
		return nil
	}
	numDetections := sizes[2]
	if numDetections == 0 {
		return nil
	}

	data := out.Reshape(1, numDetections)
	defer data.Close()

	var results []scoredBox
	for i := 0; i < numDetections; i++ {
		confidence := data.GetFloatAt(i, 2)
		if confidence <= e.ConfThreshold {
			continue
		}

		xMin := maxFloat32(0, data.GetFloatAt(i, 3)*imgWidth)
		yMin := maxFloat32(0, data.GetFloatAt(i, 4)*imgHeight)
		xMax := minFloat32(imgWidth, data.GetFloatAt(i, 5)*imgWidth)
		yMax := minFloat32(imgHeight, data.GetFloatAt(i, 6)*imgHeight)

		if xMax > xMin && yMax > yMin {
			results = append(results, scoredBox{
				box: geometry.Box{
					X: int(xMin),
					Y: int(yMin),
					W: int(xMax - xMin),
					H: int(yMax - yMin),
				},
				confidence: confidence,
			})
		}
	}
	return results
}

// extractEmbedding runs the recognition net over one face region and returns
// an L2-normalized embedding vector.
func (e *DNNEngine) extractEmbedding(faceRegion gocv.Mat) []float32 {
	if faceRegion.Empty() {
		return nil
	}

	// ArcFace expects RGB input normalized to [0,1]
	rgb := gocv.NewMat()
	gocv.CvtColor(faceRegion, &rgb, gocv.ColorBGRToRGB)
	defer rgb.Close()

	blob := gocv.BlobFromImage(rgb, 1.0/255.0, image.Pt(e.RecogSizeW, e.RecogSizeH), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	e.recognition.SetInput(blob, "")
	out := e.recognition.Forward("")
	defer out.Close()

	flattened := out.Reshape(1, 1)
	defer flattened.Close()

	embedding := make([]float32, flattened.Cols())
	for i := range embedding {
		embedding[i] = flattened.GetFloatAt(0, i)
	}
	return normalizeEmbedding(embedding)
}

// estimateAge returns the midpoint of the age-net's most probable bucket.
func (e *DNNEngine) estimateAge(faceRegion gocv.Mat) int {
	if faceRegion.Empty() {
		return 0
	}

	blob := gocv.BlobFromImage(faceRegion, 1.0, image.Pt(227, 227), gocv.NewScalar(78.4263, 87.7689, 114.8958, 0), false, false)
	defer blob.Close()

	e.ageNet.SetInput(blob, "")
	out := e.ageNet.Forward("")
	defer out.Close()

	flattened := out.Reshape(1, 1)
	defer flattened.Close()

	best, bestIdx := float32(-1), 0
	for i := 0; i < flattened.Cols() && i < len(ageBuckets); i++ {
		if v := flattened.GetFloatAt(0, i); v > best {
			best, bestIdx = v, i
		}
	}
	return ageBuckets[bestIdx]
}

// estimateGender returns the gender-net's top class and its confidence.
func (e *DNNEngine) estimateGender(faceRegion gocv.Mat) (Gender, float32) {
	if faceRegion.Empty() {
		return GenderUnknown, 0
	}

	blob := gocv.BlobFromImage(faceRegion, 1.0, image.Pt(227, 227), gocv.NewScalar(78.4263, 87.7689, 114.8958, 0), false, false)
	defer blob.Close()

	e.genderNet.SetInput(blob, "")
	out := e.genderNet.Forward("")
	defer out.Close()

	flattened := out.Reshape(1, 1)
	defer flattened.Close()
	if flattened.Cols() < 2 {
		return GenderUnknown, 0
	}

	male := flattened.GetFloatAt(0, 0)
	female := flattened.GetFloatAt(0, 1)
	if male >= female {
		return GenderMale, male
	}
	return GenderFemale, female
}

// normalizeEmbedding normalizes the embedding vector to unit length
func normalizeEmbedding(embedding []float32) []float32 {
	if len(embedding) == 0 {
		return embedding
	}

	var norm float32
	for _, val := range embedding {
		norm += val * val
	}
	norm = float32(math.Sqrt(float64(norm)))
	if norm == 0 {
		return embedding
	}

	normalized := make([]float32, len(embedding))
	for i, val := range embedding {
		normalized[i] = val / norm
	}
	return normalized
}

func minFloat32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxFloat32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
