package untis

import "github.com/LimoEisbxr/periodix/server/internal/model"

// Wire shapes for the upstream JSON-RPC results. Kept separate from the
// domain model so protocol quirks stay inside this package.

type wireIDName struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	LongName string `json:"longname"`
}

type wireLesson struct {
	ID           int64        `json:"id"`
	LessonNumber int64        `json:"lsnumber"`
	Date         int          `json:"date"`
	StartTime    int          `json:"startTime"`
	EndTime      int          `json:"endTime"`
	Code         string       `json:"code"`
	Info         string       `json:"info"`
	Subjects     []wireIDName `json:"su"`
	Teachers     []wireIDName `json:"te"`
	Rooms        []wireIDName `json:"ro"`
}

func (w wireLesson) toModel() model.Lesson {
	l := model.Lesson{
		ID:           w.ID,
		LessonNumber: w.LessonNumber,
		Date:         w.Date,
		StartTime:    w.StartTime,
		EndTime:      w.EndTime,
		Code:         w.Code,
		Info:         w.Info,
	}
	if len(w.Subjects) > 0 {
		l.Subject = w.Subjects[0].Name
	}
	for _, t := range w.Teachers {
		l.Teachers = append(l.Teachers, t.Name)
	}
	for _, r := range w.Rooms {
		l.Rooms = append(l.Rooms, r.Name)
	}
	return l
}

type wireHomework struct {
	ID        int64  `json:"id"`
	LessonID  int64  `json:"lessonId"`
	DueDate   int    `json:"dueDate"`
	Subject   string `json:"subject"`
	Text      string `json:"text"`
	Remark    string `json:"remark"`
	Completed bool   `json:"completed"`
}

func (w wireHomework) toModel() model.HomeworkRecord {
	hw := model.HomeworkRecord{
		UpstreamID: w.ID,
		DueDate:    w.DueDate,
		Subject:    w.Subject,
		Text:       w.Text,
		Completed:  w.Completed,
	}
	if hw.Text == "" {
		hw.Text = w.Remark
	}
	if w.LessonID != 0 {
		id := w.LessonID
		hw.LessonID = &id
	}
	return hw
}

type wireExam struct {
	ID        int64    `json:"id"`
	Date      int      `json:"examDate"`
	StartTime int      `json:"startTime"`
	EndTime   int      `json:"endTime"`
	Subject   string   `json:"subject"`
	Name      string   `json:"name"`
	Text      string   `json:"text"`
	Teachers  []string `json:"teachers"`
	Rooms     []string `json:"rooms"`
}

func (w wireExam) toModel() model.ExamRecord {
	return model.ExamRecord{
		UpstreamID: w.ID,
		Date:       w.Date,
		StartTime:  w.StartTime,
		EndTime:    w.EndTime,
		Subject:    w.Subject,
		Name:       w.Name,
		Text:       w.Text,
		Teachers:   w.Teachers,
		Rooms:      w.Rooms,
	}
}

type wireClass struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	LongName string `json:"longName"`
}
